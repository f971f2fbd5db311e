// Package attendance implements single-use QR ticket issuance and check-in
// verification. Only the SHA-256 digest of a ticket token is ever persisted;
// the raw token lives in the QR code held by the attendee. Verification is
// race-safe: the check-in write is a single conditional update, so two
// simultaneous scans of the same code produce exactly one confirmation.
package attendance

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/models"
)

// Status is the outcome of a verification attempt.
type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusInvalid     Status = "invalid"
	StatusAlreadyUsed Status = "already_used"
)

const (
	// tokenBytes gives 256 bits of entropy per ticket.
	tokenBytes = 32
	// maxTokenLen bounds scanner input before any digest work.
	maxTokenLen = 512
)

// ErrSignupNotFound is returned by stores when no signup matches.
var ErrSignupNotFound = errors.New("signup not found")

// SignupStore is the persistence surface the service depends on. Any store
// with a point lookup by digest and a conditional single-row update works;
// the pgx implementation lives in repository.go.
type SignupStore interface {
	// SetTokenHash persists a new ticket digest on the signup, replacing any
	// previous one. The event id is stored alongside as a cross-check.
	SetTokenHash(ctx context.Context, signupID, eventID uuid.UUID, hash string) error
	// FindByTokenHash returns the signup holding the digest, or ErrSignupNotFound.
	FindByTokenHash(ctx context.Context, hash string) (*models.Signup, error)
	// CheckIn records attendance iff the signup is not yet checked in.
	// Returns false (and no error) when another caller got there first.
	CheckIn(ctx context.Context, signupID uuid.UUID, actorID *uuid.UUID, notes *string, at time.Time) (bool, error)
}

// Ticket is the result of issuing a QR ticket.
type Ticket struct {
	// Token is the raw single-use credential. It is returned to the caller
	// and embedded in the QR image but never stored.
	Token string `json:"token"`
	// Payload is the text encoded into the QR code (token, optionally
	// prefixed with the verify base URL).
	Payload string `json:"payload"`
	// PNG is the QR image bytes.
	PNG []byte `json:"-"`
	// DataURI is the PNG as a data: URI for direct <img> embedding.
	DataURI string `json:"qr_code"`
}

// Result is the outcome of Verify. AttendeeName and EventID are populated
// whenever a matching signup was found so staff UIs can show who scanned.
type Result struct {
	Status       Status
	SignupID     uuid.UUID
	AttendeeName string
	EventID      uuid.UUID
	CheckedInAt  time.Time
}

// Options configures ticket generation.
type Options struct {
	// VerifyBaseURL, when set, is prepended to the QR payload
	// (e.g. https://app.example.com/staff/verify?token=<token>).
	VerifyBaseURL string
	// QRSize is the PNG width/height in pixels. Defaults to 400.
	QRSize int
}

// Service issues and verifies single-use QR tickets.
type Service struct {
	store  SignupStore
	opts   Options
	logger *zap.Logger
}

// NewService creates an attendance service.
func NewService(store SignupStore, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QRSize <= 0 {
		opts.QRSize = 400
	}
	return &Service{store: store, opts: opts, logger: logger}
}

// Issue generates a fresh single-use ticket for a signup. The digest is
// durably stored before the image is produced, so a returned ticket is
// always verifiable. Re-issuing invalidates any previously issued token for
// the same signup.
func (s *Service) Issue(ctx context.Context, signupID, eventID uuid.UUID) (*Ticket, error) {
	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	if err := s.store.SetTokenHash(ctx, signupID, eventID, hashToken(token)); err != nil {
		return nil, fmt.Errorf("store token hash: %w", err)
	}

	payload := token
	if s.opts.VerifyBaseURL != "" {
		payload = s.opts.VerifyBaseURL + "?token=" + url.QueryEscape(token)
	}
	png, err := encodePNG(payload, s.opts.QRSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	s.logger.Debug("ticket issued", zap.String("signup_id", signupID.String()))
	return &Ticket{
		Token:   token,
		Payload: payload,
		PNG:     png,
		DataURI: pngDataURI(png),
	}, nil
}

// Verify checks a scanned token and, on first use, records the check-in with
// the acting staff member. Invalid and AlreadyUsed are expected outcomes,
// not errors; an error return means the store was unreachable and the scan
// may be retried.
func (s *Service) Verify(ctx context.Context, raw string, actorID *uuid.UUID, notes string) (*Result, error) {
	raw = s.normalize(raw)
	if raw == "" || len(raw) > maxTokenLen {
		return &Result{Status: StatusInvalid}, nil
	}

	signup, err := s.store.FindByTokenHash(ctx, hashToken(raw))
	if errors.Is(err, ErrSignupNotFound) {
		// Never issued, tampered, or superseded by re-issuance: all identical here.
		return &Result{Status: StatusInvalid}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token hash: %w", err)
	}

	if signup.CheckedInAt != nil {
		return &Result{
			Status:       StatusAlreadyUsed,
			SignupID:     signup.ID,
			AttendeeName: signup.FullName,
			EventID:      signup.EventID,
			CheckedInAt:  *signup.CheckedInAt,
		}, nil
	}

	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	now := time.Now().UTC()
	updated, err := s.store.CheckIn(ctx, signup.ID, actorID, notesPtr, now)
	if err != nil {
		return nil, fmt.Errorf("record check-in: %w", err)
	}
	if !updated {
		// Lost the race to a concurrent scan of the same code.
		return &Result{
			Status:       StatusAlreadyUsed,
			SignupID:     signup.ID,
			AttendeeName: signup.FullName,
			EventID:      signup.EventID,
		}, nil
	}

	return &Result{
		Status:       StatusConfirmed,
		SignupID:     signup.ID,
		AttendeeName: signup.FullName,
		EventID:      signup.EventID,
		CheckedInAt:  now,
	}, nil
}

// normalize trims the input and unwraps tokens delivered as a full verify
// URL (generic scanner apps post the whole QR payload).
func (s *Service) normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if s.opts.VerifyBaseURL != "" && strings.HasPrefix(raw, s.opts.VerifyBaseURL) {
		if u, err := url.Parse(raw); err == nil {
			if t := u.Query().Get("token"); t != "" {
				return t
			}
		}
	}
	return raw
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
