package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, title, description, location, starts_at, ends_at, capacity, created_by)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt, e.Capacity, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	const q = `SELECT id, title, description, location, starts_at, ends_at, capacity, image_key, created_by, created_at, updated_at
		FROM events WHERE id = $1`
	var e models.Event
	err := r.pool.QueryRow(ctx, q, id).Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.StartsAt,
		&e.EndsAt, &e.Capacity, &e.ImageKey, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns events ordered by start time, optionally only upcoming ones.
func (r *Repository) List(ctx context.Context, upcomingOnly bool) ([]models.Event, error) {
	q := `SELECT id, title, description, location, starts_at, ends_at, capacity, image_key, created_by, created_at, updated_at FROM events`
	if upcomingOnly {
		q += ` WHERE starts_at >= NOW()`
	}
	q += ` ORDER BY starts_at`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.StartsAt,
			&e.EndsAt, &e.Capacity, &e.ImageKey, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Update updates event fields; nil time/capacity pointers keep existing values.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, description, location string, startsAt, endsAt *time.Time, capacity *int) error {
	const q = `UPDATE events SET title = $1, description = $2, location = $3,
		starts_at = COALESCE($4, starts_at), ends_at = COALESCE($5, ends_at),
		capacity = COALESCE($6, capacity), updated_at = NOW() WHERE id = $7`
	_, err := r.pool.Exec(ctx, q, title, description, location, startsAt, endsAt, capacity, id)
	return err
}

// SetImageKey records the S3 object key of the cover image.
func (r *Repository) SetImageKey(ctx context.Context, id uuid.UUID, key string) error {
	const q = `UPDATE events SET image_key = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, key, id)
	return err
}

// Delete removes an event (signups cascade).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM events WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// Counts returns total signups and checked-in count for an event.
func (r *Repository) Counts(ctx context.Context, eventID uuid.UUID) (total, checkedIn int, err error) {
	const q = `SELECT COUNT(*), COUNT(checked_in_at) FROM signups WHERE event_id = $1`
	err = r.pool.QueryRow(ctx, q, eventID).Scan(&total, &checkedIn)
	return total, checkedIn, err
}
