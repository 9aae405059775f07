package entity

// MutationStatus tracks a tentative local change against its server call.
type MutationStatus string

const (
	MutationPending   MutationStatus = "pending"
	MutationCommitted MutationStatus = "committed"
	MutationFailed    MutationStatus = "failed"
)
