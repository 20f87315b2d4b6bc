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

	"github.com/avelloz/streampanel/internal/domain/model"
	"github.com/avelloz/streampanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// When constructed with a key, token blobs are encrypted with AES-256-GCM
// before write and decrypted after read; with a nil key blobs are stored
// plaintext. Display fields are never encrypted.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key, or nil to store blobs plaintext.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable encryption at rest.
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// FindOne retrieves the credential for the given platform.
// Returns (nil, nil) when no credential exists.
func (r *CredentialRepo) FindOne(ctx context.Context, platform string) (*model.Credential, error) {
	const query = `SELECT id, platform, token, display_name, profile_image, updated_at
		FROM credentials WHERE platform = ?`

	var cred model.Credential
	var stored, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, platform).Scan(
		&cred.ID, &cred.Platform, &stored, &cred.DisplayName, &cred.ProfileImage, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find credential %q: %w", platform, err)
	}

	cred.Token, err = r.decrypt(stored)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential %q: %w", platform, err)
	}

	cred.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for credential %q: %w", platform, err)
	}

	return &cred, nil
}

// Upsert inserts or fully replaces the token blob for the platform.
// updated_at advances to the write time; display fields are preserved on
// update so a refresh does not wipe the cached profile.
func (r *CredentialRepo) Upsert(ctx context.Context, platform, tokenBlob string) error {
	stored, err := r.encrypt(tokenBlob)
	if err != nil {
		return err
	}

	const query = `INSERT INTO credentials (platform, token, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(platform) DO UPDATE SET token = excluded.token, updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.Writer.ExecContext(ctx, query, platform, stored); err != nil {
		return fmt.Errorf("upsert credential %q: %w", platform, err)
	}
	return nil
}

// UpdateProfile updates the cached display fields only, leaving the token
// blob and updated_at untouched. updated_at is the issuance reference for
// token expiry and must not move on a profile sync.
func (r *CredentialRepo) UpdateProfile(ctx context.Context, platform, displayName, profileImage string) error {
	const query = `UPDATE credentials SET display_name = ?, profile_image = ? WHERE platform = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, displayName, profileImage, platform)
	if err != nil {
		return fmt.Errorf("update profile for %q: %w", platform, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile for %q: %w", platform, err)
	}
	if n == 0 {
		return driven.ErrNotAuthenticated
	}
	return nil
}

// Delete removes the credential for the given platform.
func (r *CredentialRepo) Delete(ctx context.Context, platform string) error {
	const query = `DELETE FROM credentials WHERE platform = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, platform); err != nil {
		return fmt.Errorf("delete credential %q: %w", platform, err)
	}
	return nil
}

// DeleteAll wipes every stored credential.
func (r *CredentialRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("delete all credentials: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
// With a nil key the plaintext passes through unchanged.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return plaintext, nil
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
// With a nil key the stored value passes through unchanged.
func (r *CredentialRepo) decrypt(stored string) (string, error) {
	if r.key == nil {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
