package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// SQLiteTokenRepository keeps the access token sealed with a key derived
// from the configured secret. A fresh salt and nonce are used per save.
type SQLiteTokenRepository struct {
	db     *DB
	secret []byte
}

func NewSQLiteTokenRepository(db *DB, secret string) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db, secret: []byte(secret)}
}

func (r *SQLiteTokenRepository) deriveKey(salt []byte) *[32]byte {
	var key [32]byte
	copy(key[:], argon2.IDKey(r.secret, salt, 1, 64*1024, 4, 32))
	return &key
}

func (r *SQLiteTokenRepository) Save(ctx context.Context, token string) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(token), &nonce, r.deriveKey(salt))

	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO auth_token (id, salt, sealed, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET salt = excluded.salt, sealed = excluded.sealed, updated_at = excluded.updated_at`,
		salt, sealed, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (r *SQLiteTokenRepository) Load(ctx context.Context) (string, error) {
	var salt, sealed []byte
	err := r.db.conn.QueryRowContext(ctx, `SELECT salt, sealed FROM auth_token WHERE id = 1`).Scan(&salt, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if len(sealed) < 24 {
		return "", fmt.Errorf("stored token is corrupt")
	}

	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, r.deriveKey(salt))
	if !ok {
		return "", fmt.Errorf("failed to decrypt stored token")
	}
	return string(plain), nil
}

func (r *SQLiteTokenRepository) Delete(ctx context.Context) error {
	if _, err := r.db.conn.ExecContext(ctx, `DELETE FROM auth_token WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
