package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/tiers"
)

const itemColumns = `c.id, c.slug, c.title, c.summary, c.body, c.kind, c.visibility, c.required_tier, c.status,
	c.publish_at, c.published_at, COALESCE(c.author_id::text, ''), c.created_at, c.updated_at`

// PGRepository persists content items in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a new item.
func (r *PGRepository) Create(ctx context.Context, item Item) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO content_items
	(id, slug, title, summary, body, kind, visibility, required_tier, status, publish_at, published_at, author_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, '')::uuid, $13, $14)`,
		item.ID, item.Slug, item.Title, item.Summary, item.Body, string(item.Kind), string(item.Visibility),
		tierValue(item.RequiredTier), string(item.Status), item.PublishAt, item.PublishedAt, item.AuthorID,
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("content: insert: %w", err)
	}
	return nil
}

// Update writes the mutable lifecycle fields of an item.
func (r *PGRepository) Update(ctx context.Context, item Item) error {
	tag, err := r.pool.Exec(ctx, `UPDATE content_items
SET status = $2, publish_at = $3, published_at = $4, updated_at = $5
WHERE id = $1`, item.ID, string(item.Status), item.PublishAt, item.PublishedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("content: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads an item by ID.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Item, error) {
	return r.getOne(ctx, `SELECT `+itemColumns+` FROM content_items c WHERE c.id = $1`, id)
}

// GetBySlug loads an item by slug.
func (r *PGRepository) GetBySlug(ctx context.Context, slug string) (Item, error) {
	return r.getOne(ctx, `SELECT `+itemColumns+` FROM content_items c WHERE c.slug = $1`, slug)
}

// ListVisible returns one page of items matching pred, newest first, and the
// total number of matches.
func (r *PGRepository) ListVisible(ctx context.Context, pred access.Predicate, kind Kind, limit, offset int) ([]Item, int, error) {
	where, args := pred.SQL("c", 1)
	if kind != "" {
		args = append(args, string(kind))
		where += fmt.Sprintf(" AND c.kind = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM content_items c WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("content: count visible: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM content_items c WHERE %s
ORDER BY c.published_at DESC NULLS LAST, c.id LIMIT $%d OFFSET $%d`, itemColumns, where, len(args)-1, len(args))
	items, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("content: list visible: %w", err)
	}
	return items, total, nil
}

// ListDue returns scheduled items whose publication time is not after now.
func (r *PGRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]Item, error) {
	return r.list(ctx, `SELECT `+itemColumns+` FROM content_items c
WHERE c.status = 'scheduled' AND c.publish_at <= $1
ORDER BY c.publish_at LIMIT $2`, now, limit)
}

func (r *PGRepository) getOne(ctx context.Context, query string, arg any) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("content: get: %w", err)
	}
	return item, nil
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		item                     Item
		kind, visibility, status string
		tier                     *string
	)
	err := row.Scan(&item.ID, &item.Slug, &item.Title, &item.Summary, &item.Body, &kind, &visibility, &tier, &status,
		&item.PublishAt, &item.PublishedAt, &item.AuthorID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.Kind = Kind(kind)
	item.Visibility = access.Visibility(visibility)
	item.Status = access.Status(status)
	if tier != nil {
		t := tiers.Tier(*tier)
		item.RequiredTier = &t
	}
	return item, nil
}

func tierValue(t *tiers.Tier) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}
