package repository

import "context"

// TokenRepository persists the single backend access token across restarts.
// Load returns "" with a nil error when nothing is stored.
type TokenRepository interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Delete(ctx context.Context) error
}
