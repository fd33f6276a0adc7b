package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists subscription records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads the record for userID.
func (r *Repository) Get(ctx context.Context, userID string) (Record, error) {
	var rec Record
	var tier *string
	err := r.pool.QueryRow(ctx, `SELECT user_id::text, status, tier, current_period_end, updated_at
FROM subscriptions WHERE user_id = $1`, userID).Scan(&rec.UserID, &rec.Status, &tier, &rec.CurrentPeriodEnd, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if tier != nil {
		rec.Tier = *tier
	}
	return rec, nil
}

// Upsert inserts or replaces the record for rec.UserID.
func (r *Repository) Upsert(ctx context.Context, rec Record) error {
	var tier *string
	if rec.Tier != "" {
		tier = &rec.Tier
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO subscriptions (user_id, status, tier, current_period_end, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET status = EXCLUDED.status, tier = EXCLUDED.tier,
	current_period_end = EXCLUDED.current_period_end, updated_at = EXCLUDED.updated_at`,
		rec.UserID, string(rec.Status), tier, rec.CurrentPeriodEnd, rec.UpdatedAt)
	return err
}
