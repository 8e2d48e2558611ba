package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/authgate/internal/models"
)

// ActiveTokenRepository provides database access to issued-token records.
type ActiveTokenRepository struct {
	db *sqlx.DB
}

// NewActiveTokenRepository creates a new instance of ActiveTokenRepository.
func NewActiveTokenRepository(db *sqlx.DB) *ActiveTokenRepository {
	return &ActiveTokenRepository{db: db}
}

// Save inserts the record for a freshly issued token.
func (r *ActiveTokenRepository) Save(ctx context.Context, record *models.ActiveToken) error {
	const query = `INSERT INTO active_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, record.Token, record.UserID, record.ExpiresAt); err != nil {
		return fmt.Errorf("save active token: %w", err)
	}
	return nil
}

// FindByExpiryBefore returns all records whose expiry precedes the cutoff.
func (r *ActiveTokenRepository) FindByExpiryBefore(ctx context.Context, cutoff time.Time) ([]models.ActiveToken, error) {
	const query = `SELECT token, user_id, expires_at FROM active_tokens WHERE expires_at < $1`
	var records []models.ActiveToken
	if err := r.db.SelectContext(ctx, &records, query, cutoff); err != nil {
		return nil, fmt.Errorf("find tokens by expiry: %w", err)
	}
	return records, nil
}

// FindByUserID returns every active record belonging to a user.
func (r *ActiveTokenRepository) FindByUserID(ctx context.Context, userID int64) ([]models.ActiveToken, error) {
	const query = `SELECT token, user_id, expires_at FROM active_tokens WHERE user_id = $1`
	var records []models.ActiveToken
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("find tokens by user: %w", err)
	}
	return records, nil
}

// DeleteByToken removes a single record. Deleting an absent token is a no-op.
func (r *ActiveTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	const query = `DELETE FROM active_tokens WHERE token = $1`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// DeleteByUser removes all records belonging to a user.
func (r *ActiveTokenRepository) DeleteByUser(ctx context.Context, userID int64) error {
	const query = `DELETE FROM active_tokens WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete tokens for user: %w", err)
	}
	return nil
}
