package signups

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

// Repository handles signup persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a signups repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create upserts a signup (unique per event+email). A repeat signup updates
// the name and type but keeps check-in state and any issued ticket digest.
func (r *Repository) Create(ctx context.Context, s *models.Signup) error {
	const q = `INSERT INTO signups (id, event_id, email, full_name, signup_type)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		ON CONFLICT (event_id, email) DO UPDATE SET full_name = EXCLUDED.full_name, signup_type = EXCLUDED.signup_type, updated_at = NOW()
		RETURNING id, checked_in_at, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.EventID, s.Email, s.FullName, string(s.Type)).
		Scan(&s.ID, &s.CheckedInAt, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a signup by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Signup, error) {
	const q = `SELECT id, event_id, email, full_name, signup_type,
		checked_in_at, checked_in_by, check_in_notes, created_at, updated_at
		FROM signups WHERE id = $1`
	var s models.Signup
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.EventID, &s.Email, &s.FullName, &s.Type,
		&s.CheckedInAt, &s.CheckedInBy, &s.CheckInNotes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByEvent returns all signups for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Signup, error) {
	const q = `SELECT id, event_id, email, full_name, signup_type,
		checked_in_at, checked_in_by, check_in_notes, created_at, updated_at
		FROM signups WHERE event_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Signup
	for rows.Next() {
		var s models.Signup
		if err := rows.Scan(&s.ID, &s.EventID, &s.Email, &s.FullName, &s.Type,
			&s.CheckedInAt, &s.CheckedInBy, &s.CheckInNotes, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// ListByEmail returns all signups for an attendee email, newest first.
func (r *Repository) ListByEmail(ctx context.Context, email string) ([]models.Signup, error) {
	const q = `SELECT id, event_id, email, full_name, signup_type,
		checked_in_at, checked_in_by, check_in_notes, created_at, updated_at
		FROM signups WHERE email = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Signup
	for rows.Next() {
		var s models.Signup
		if err := rows.Scan(&s.ID, &s.EventID, &s.Email, &s.FullName, &s.Type,
			&s.CheckedInAt, &s.CheckedInBy, &s.CheckInNotes, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Delete removes a signup (cancellation before the event).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM signups WHERE id = $1 AND checked_in_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}
