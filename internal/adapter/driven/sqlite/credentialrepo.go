package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
	"github.com/ericfisherdev/runpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port
// interface. It holds server API tokens. Values are encrypted with
// AES-256-GCM before write and decrypted after read; the stored form is
// base64(nonce || ciphertext || tag).
type CredentialRepo struct {
	db   *DB
	aead cipher.AEAD // nil when no key is configured.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage, in which case every
// read and write returns driven.ErrEncryptionKeyNotSet.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	repo := &CredentialRepo{db: db}
	if key == nil {
		return repo, nil
	}

	if len(key) != 32 {
		return nil, fmt.Errorf("credential key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	repo.aead, err = cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return repo, nil
}

// Set stores or replaces the credential for the given service.
func (r *CredentialRepo) Set(ctx context.Context, service, plaintext string) error {
	encrypted, err := r.seal(plaintext)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO credentials (service, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.Writer.ExecContext(ctx, query, service, encrypted); err != nil {
		return fmt.Errorf("set credential %q: %w", service, err)
	}
	return nil
}

// Get retrieves the plaintext credential for the given service.
// Returns ("", nil) if no credential exists for that service.
func (r *CredentialRepo) Get(ctx context.Context, service string) (string, error) {
	if r.aead == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT value FROM credentials WHERE service = ?`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query, service).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", service, err)
	}

	plaintext, err := r.open(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt credential %q: %w", service, err)
	}
	return plaintext, nil
}

// List returns all stored credentials with decrypted values, ordered by service.
func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	if r.aead == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT id, service, value, updated_at FROM credentials ORDER BY service`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		var cred model.Credential
		var encrypted, updatedAt string
		if err := rows.Scan(&cred.ID, &cred.Service, &encrypted, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}

		if cred.Value, err = r.open(encrypted); err != nil {
			return nil, fmt.Errorf("decrypt credential %q: %w", cred.Service, err)
		}
		if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at for credential %q: %w", cred.Service, err)
		}

		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// Delete removes the credential for the given service. Deleting a missing
// credential is not an error.
func (r *CredentialRepo) Delete(ctx context.Context, service string) error {
	const query = `DELETE FROM credentials WHERE service = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, service); err != nil {
		return fmt.Errorf("delete credential %q: %w", service, err)
	}
	return nil
}

func (r *CredentialRepo) seal(plaintext string) (string, error) {
	if r.aead == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	nonce := make([]byte, r.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := r.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (r *CredentialRepo) open(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	nonceSize := r.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := r.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}
