package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"faindi/internal/domain/entity"
	"faindi/internal/domain/repository"
	apperrors "faindi/pkg/errors"
)

type SQLiteOutboxRepository struct {
	db *DB
}

func NewSQLiteOutboxRepository(db *DB) *SQLiteOutboxRepository {
	return &SQLiteOutboxRepository{db: db}
}

func (r *SQLiteOutboxRepository) Save(ctx context.Context, entry *repository.OutboxEntry) error {
	msg, err := json.Marshal(entry.Message)
	if err != nil {
		return fmt.Errorf("failed to encode outbox message: %w", err)
	}
	medias, err := json.Marshal(entry.LocalMedias)
	if err != nil {
		return fmt.Errorf("failed to encode outbox medias: %w", err)
	}

	now := time.Now().UnixMilli()
	_, err = r.db.conn.ExecContext(ctx, `
		INSERT INTO outbox (client_id, receiver_id, message, local_medias, delivery, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			message = excluded.message,
			local_medias = excluded.local_medias,
			delivery = excluded.delivery,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		entry.Message.ClientID, entry.Message.ReceiverID, string(msg), string(medias),
		string(entry.Message.Delivery), entry.Attempts, entry.LastError,
		entry.Message.CreatedAt.UnixMilli(), now)
	if err != nil {
		return fmt.Errorf("failed to save outbox entry %s: %w", entry.Message.ClientID, err)
	}
	return nil
}

func (r *SQLiteOutboxRepository) GetByClientID(ctx context.Context, clientID string) (*repository.OutboxEntry, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT message, local_medias, delivery, attempts, last_error
		FROM outbox WHERE client_id = ?`, clientID)

	entry, err := scanOutbox(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("Outbox message", err)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *SQLiteOutboxRepository) UpdateDelivery(ctx context.Context, clientID string, delivery entity.Delivery, attempts int, lastError string) error {
	res, err := r.db.conn.ExecContext(ctx, `
		UPDATE outbox SET delivery = ?, attempts = ?, last_error = ?, updated_at = ?
		WHERE client_id = ?`,
		string(delivery), attempts, lastError, time.Now().UnixMilli(), clientID)
	if err != nil {
		return fmt.Errorf("failed to update outbox entry %s: %w", clientID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("Outbox message", nil)
	}
	return nil
}

func (r *SQLiteOutboxRepository) ListByDelivery(ctx context.Context, delivery entity.Delivery) ([]*repository.OutboxEntry, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT message, local_medias, delivery, attempts, last_error
		FROM outbox WHERE delivery = ? ORDER BY created_at ASC`, string(delivery))
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	var entries []*repository.OutboxEntry
	for rows.Next() {
		entry, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *SQLiteOutboxRepository) Delete(ctx context.Context, clientID string) error {
	if _, err := r.db.conn.ExecContext(ctx, `DELETE FROM outbox WHERE client_id = ?`, clientID); err != nil {
		return fmt.Errorf("failed to delete outbox entry %s: %w", clientID, err)
	}
	return nil
}

func (r *SQLiteOutboxRepository) Clear(ctx context.Context) error {
	if _, err := r.db.conn.ExecContext(ctx, `DELETE FROM outbox`); err != nil {
		return fmt.Errorf("failed to clear outbox: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOutbox(row rowScanner) (*repository.OutboxEntry, error) {
	var (
		rawMsg, rawMedias, delivery, lastError string
		attempts                               int
	)
	if err := row.Scan(&rawMsg, &rawMedias, &delivery, &attempts, &lastError); err != nil {
		return nil, err
	}

	entry := &repository.OutboxEntry{Attempts: attempts, LastError: lastError}
	if err := json.Unmarshal([]byte(rawMsg), &entry.Message); err != nil {
		return nil, fmt.Errorf("failed to decode outbox message: %w", err)
	}
	if err := json.Unmarshal([]byte(rawMedias), &entry.LocalMedias); err != nil {
		return nil, fmt.Errorf("failed to decode outbox medias: %w", err)
	}
	entry.Message.Delivery = entity.Delivery(delivery)
	return entry, nil
}
