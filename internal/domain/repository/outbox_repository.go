package repository

import (
	"context"

	"faindi/internal/domain/entity"
)

// OutboxEntry is a locally composed chat message awaiting delivery.
// LocalMedias keeps the device references until the upload succeeds.
type OutboxEntry struct {
	Message     entity.Message
	LocalMedias []entity.Media
	Attempts    int
	LastError   string
}

type OutboxRepository interface {
	Save(ctx context.Context, entry *OutboxEntry) error
	GetByClientID(ctx context.Context, clientID string) (*OutboxEntry, error)
	UpdateDelivery(ctx context.Context, clientID string, delivery entity.Delivery, attempts int, lastError string) error
	ListByDelivery(ctx context.Context, delivery entity.Delivery) ([]*OutboxEntry, error)
	Delete(ctx context.Context, clientID string) error
	Clear(ctx context.Context) error
}
