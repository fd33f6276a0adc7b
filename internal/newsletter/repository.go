package newsletter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentacademy/academy/internal/platform/db"
	"github.com/agentacademy/academy/internal/subscriptions"
)

// Member is a stored newsletter candidate with its subscription record, if any.
type Member struct {
	UserID       string
	Email        string
	Name         string
	OptedIn      bool
	Subscription *subscriptions.Record
}

// SendLog is the persisted summary of one newsletter send.
type SendLog struct {
	ID         uuid.UUID            `json:"id"`
	ItemID     uuid.UUID            `json:"item_id"`
	Total      int                  `json:"total"`
	Sent       int                  `json:"sent"`
	Failed     int                  `json:"failed"`
	Failures   []RecipientSendError `json:"-"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// Repository persists newsletter data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRecipients returns every opted-in member joined to their subscription.
func (r *Repository) ListRecipients(ctx context.Context) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id::text, u.email, u.name, u.newsletter_opt_in,
	s.status, s.tier, s.current_period_end, s.updated_at
FROM users u
LEFT JOIN subscriptions s ON s.user_id = u.id
WHERE u.newsletter_opt_in
ORDER BY u.email`)
	if err != nil {
		return nil, fmt.Errorf("newsletter: list recipients: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var (
			m         Member
			status    *string
			tier      *string
			periodEnd *time.Time
			updatedAt *time.Time
		)
		if err := rows.Scan(&m.UserID, &m.Email, &m.Name, &m.OptedIn, &status, &tier, &periodEnd, &updatedAt); err != nil {
			return nil, fmt.Errorf("newsletter: scan recipient: %w", err)
		}
		if status != nil {
			rec := &subscriptions.Record{
				UserID:           m.UserID,
				Status:           subscriptions.Status(*status),
				CurrentPeriodEnd: periodEnd,
			}
			if tier != nil {
				rec.Tier = *tier
			}
			if updatedAt != nil {
				rec.UpdatedAt = *updatedAt
			}
			m.Subscription = rec
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// SetOptIn stores the newsletter preference of a user.
func (r *Repository) SetOptIn(ctx context.Context, userID string, optIn bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET newsletter_opt_in = $2, updated_at = NOW() WHERE id = $1`, userID, optIn)
	if err != nil {
		return fmt.Errorf("newsletter: set opt-in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownMember
	}
	return nil
}

// RecordSend stores the send summary and its failures atomically.
func (r *Repository) RecordSend(ctx context.Context, log SendLog) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO newsletter_sends (id, item_id, total, sent, failed, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, log.ID, log.ItemID, log.Total, log.Sent, log.Failed, log.StartedAt, log.FinishedAt)
		if err != nil {
			return fmt.Errorf("newsletter: insert send: %w", err)
		}
		if len(log.Failures) == 0 {
			return nil
		}
		rows := make([][]any, 0, len(log.Failures))
		for _, f := range log.Failures {
			rows = append(rows, []any{log.ID, f.Email, f.Err.Error()})
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"newsletter_send_failures"}, []string{"send_id", "email", "error"}, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("newsletter: insert failures: %w", err)
		}
		return nil
	})
}
