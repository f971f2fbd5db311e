package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-events/backend/internal/models"
)

// Repository is the PostgreSQL SignupStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ SignupStore = (*Repository)(nil)

// SetTokenHash stores a fresh ticket digest on the signup, overwriting any
// previous one. The event id in the WHERE clause guards against issuing a
// ticket for a signup under the wrong event.
func (r *Repository) SetTokenHash(ctx context.Context, signupID, eventID uuid.UUID, hash string) error {
	const q = `UPDATE signups SET qr_token_hash = $1, updated_at = NOW()
		WHERE id = $2 AND event_id = $3`
	tag, err := r.pool.Exec(ctx, q, hash, signupID, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSignupNotFound
	}
	return nil
}

// FindByTokenHash returns the signup holding the given digest.
func (r *Repository) FindByTokenHash(ctx context.Context, hash string) (*models.Signup, error) {
	const q = `SELECT id, event_id, email, full_name, signup_type, qr_token_hash,
		checked_in_at, checked_in_by, check_in_notes, created_at, updated_at
		FROM signups WHERE qr_token_hash = $1`
	var s models.Signup
	err := r.pool.QueryRow(ctx, q, hash).Scan(&s.ID, &s.EventID, &s.Email, &s.FullName, &s.Type,
		&s.QRTokenHash, &s.CheckedInAt, &s.CheckedInBy, &s.CheckInNotes, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSignupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CheckIn records attendance as a single conditional update. The database
// guarantees mutual exclusion: of any number of concurrent calls for the
// same signup, exactly one affects a row. Zero rows means already checked in.
func (r *Repository) CheckIn(ctx context.Context, signupID uuid.UUID, actorID *uuid.UUID, notes *string, at time.Time) (bool, error) {
	const q = `UPDATE signups
		SET checked_in_at = $2, checked_in_by = $3, check_in_notes = $4, updated_at = NOW()
		WHERE id = $1 AND checked_in_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, signupID, at, actorID, notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
