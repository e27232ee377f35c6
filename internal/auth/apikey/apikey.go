// Package apikey issues and validates the API keys that guard the matcher's
// HTTP API. Only the SHA-256 of a key is stored; the raw key is shown once,
// when it is created.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/postgres"
)

// KeyPrefix starts every raw key so leaked keys are easy to recognise.
const KeyPrefix = "qm_"

var (
	ErrInvalidKey = fmt.Errorf("%w: invalid api key", apperrors.ErrUnauthorized)
	ErrExpiredKey = fmt.Errorf("%w: api key expired", apperrors.ErrUnauthorized)
)

type KeyInfo struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	RateLimit int        `json:"rate_limit"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Validator reads and writes the api_keys table.
type Validator struct {
	db     *postgres.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "apikey-validator"),
	}
}

const selectColumns = `SELECT id, name, rate_limit, is_active, created_at, expires_at FROM api_keys`

// Validate returns the active key matching rawKey, or ErrInvalidKey /
// ErrExpiredKey.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	if rawKey == "" {
		return nil, ErrInvalidKey
	}
	info, err := scanKey(v.db.DB.QueryRowContext(ctx,
		selectColumns+` WHERE key_hash = $1 AND is_active = true`,
		HashKey(rawKey),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	if info.ExpiresAt != nil && info.ExpiresAt.Before(v.now()) {
		return nil, ErrExpiredKey
	}
	return info, nil
}

// CreateKey stores a new key and returns the raw key with its metadata.
// The raw key cannot be recovered later.
func (v *Validator) CreateKey(ctx context.Context, name string, rateLimit int, expiresAt *time.Time) (string, *KeyInfo, error) {
	if name == "" || rateLimit <= 0 {
		return "", nil, apperrors.New(apperrors.ErrInvalidInput, 400, "key name and a positive rate limit are required")
	}
	rawKey, err := generateRawKey()
	if err != nil {
		return "", nil, err
	}

	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	info := &KeyInfo{Name: name, RateLimit: rateLimit, IsActive: true, ExpiresAt: expiresAt}
	err = v.db.DB.QueryRowContext(ctx,
		`INSERT INTO api_keys (key_hash, name, rate_limit, expires_at) VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		HashKey(rawKey), name, rateLimit, expiry,
	).Scan(&info.ID, &info.CreatedAt)
	if err != nil {
		return "", nil, fmt.Errorf("creating api key: %w", err)
	}

	v.logger.Info("api key created", "id", info.ID, "name", name, "rate_limit", rateLimit)
	return rawKey, info, nil
}

// RevokeKey deactivates the key with the given raw value.
func (v *Validator) RevokeKey(ctx context.Context, rawKey string) error {
	return v.revoke(ctx, `UPDATE api_keys SET is_active = false WHERE key_hash = $1 AND is_active = true`, HashKey(rawKey))
}

// RevokeID deactivates the key with the given id.
func (v *Validator) RevokeID(ctx context.Context, id int64) error {
	return v.revoke(ctx, `UPDATE api_keys SET is_active = false WHERE id = $1 AND is_active = true`, id)
}

func (v *Validator) revoke(ctx context.Context, query string, arg any) error {
	result, err := v.db.DB.ExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if rows == 0 {
		return ErrInvalidKey
	}
	v.logger.Info("api key revoked")
	return nil
}

// ListKeys returns the active keys, newest first.
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := v.db.DB.QueryContext(ctx, selectColumns+` WHERE is_active = true ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	keys := []KeyInfo{}
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(row scanner) (*KeyInfo, error) {
	var (
		k         KeyInfo
		expiresAt sql.NullTime
	)
	if err := row.Scan(&k.ID, &k.Name, &k.RateLimit, &k.IsActive, &k.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Time
	}
	return &k, nil
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}
