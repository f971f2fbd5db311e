package attendance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-events/backend/internal/models"
)

// --- mocks ---

// mockStore injects behavior per call, for error paths and call counting.
type mockStore struct {
	setTokenHashFn    func(ctx context.Context, signupID, eventID uuid.UUID, hash string) error
	findByTokenHashFn func(ctx context.Context, hash string) (*models.Signup, error)
	checkInFn         func(ctx context.Context, signupID uuid.UUID, actorID *uuid.UUID, notes *string, at time.Time) (bool, error)
}

func (m *mockStore) SetTokenHash(ctx context.Context, signupID, eventID uuid.UUID, hash string) error {
	if m.setTokenHashFn != nil {
		return m.setTokenHashFn(ctx, signupID, eventID, hash)
	}
	return nil
}

func (m *mockStore) FindByTokenHash(ctx context.Context, hash string) (*models.Signup, error) {
	if m.findByTokenHashFn != nil {
		return m.findByTokenHashFn(ctx, hash)
	}
	return nil, ErrSignupNotFound
}

func (m *mockStore) CheckIn(ctx context.Context, signupID uuid.UUID, actorID *uuid.UUID, notes *string, at time.Time) (bool, error) {
	if m.checkInFn != nil {
		return m.checkInFn(ctx, signupID, actorID, notes, at)
	}
	return true, nil
}

// memStore is a mutex-guarded in-memory SignupStore with the same
// conditional-update semantics as the pgx repository. Used for scenario and
// race tests.
type memStore struct {
	mu      sync.Mutex
	signups map[uuid.UUID]*models.Signup
}

func newMemStore() *memStore {
	return &memStore{signups: make(map[uuid.UUID]*models.Signup)}
}

func (m *memStore) add(name string, eventID uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.signups[id] = &models.Signup{
		ID:       id,
		EventID:  eventID,
		Email:    strings.ToLower(name) + "@example.com",
		FullName: name,
		Type:     models.SignupParticipant,
	}
	return id
}

func (m *memStore) get(id uuid.UUID) models.Signup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.signups[id]
}

func (m *memStore) SetTokenHash(_ context.Context, signupID, eventID uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signups[signupID]
	if !ok || s.EventID != eventID {
		return ErrSignupNotFound
	}
	s.QRTokenHash = &hash
	return nil
}

func (m *memStore) FindByTokenHash(_ context.Context, hash string) (*models.Signup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.signups {
		if s.QRTokenHash != nil && *s.QRTokenHash == hash {
			cp := *s // snapshot, like a DB row read
			return &cp, nil
		}
	}
	return nil, ErrSignupNotFound
}

func (m *memStore) CheckIn(_ context.Context, signupID uuid.UUID, actorID *uuid.UUID, notes *string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signups[signupID]
	if !ok || s.CheckedInAt != nil {
		return false, nil
	}
	s.CheckedInAt = &at
	s.CheckedInBy = actorID
	s.CheckInNotes = notes
	return true, nil
}

var _ SignupStore = (*mockStore)(nil)
var _ SignupStore = (*memStore)(nil)

// --- issuance ---

func TestIssue_PersistsDigestNeverRawToken(t *testing.T) {
	var stored string
	store := &mockStore{
		setTokenHashFn: func(_ context.Context, _, _ uuid.UUID, hash string) error {
			stored = hash
			return nil
		},
	}
	svc := NewService(store, Options{}, nil)

	ticket, err := svc.Issue(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if stored == "" {
		t.Fatal("digest was not persisted")
	}
	if stored == ticket.Token {
		t.Fatal("raw token stored instead of digest")
	}
	if len(stored) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(stored))
	}
	if hashToken(ticket.Token) != stored {
		t.Error("stored digest does not match token digest")
	}
	if len(ticket.Token) != 43 {
		t.Errorf("token length = %d, want 43 (32 bytes base64url)", len(ticket.Token))
	}
}

func TestIssue_StorageFailureReturnsNoTicket(t *testing.T) {
	store := &mockStore{
		setTokenHashFn: func(context.Context, uuid.UUID, uuid.UUID, string) error {
			return errors.New("connection refused")
		},
	}
	svc := NewService(store, Options{}, nil)

	ticket, err := svc.Issue(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected error when digest write fails")
	}
	if ticket != nil {
		t.Fatal("no ticket must be returned unless the digest was durably stored")
	}
}

func TestIssue_UnknownSignup(t *testing.T) {
	store := &mockStore{
		setTokenHashFn: func(context.Context, uuid.UUID, uuid.UUID, string) error {
			return ErrSignupNotFound
		},
	}
	svc := NewService(store, Options{}, nil)

	_, err := svc.Issue(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrSignupNotFound) {
		t.Fatalf("err = %v, want ErrSignupNotFound", err)
	}
}

func TestIssue_PayloadUsesVerifyBaseURL(t *testing.T) {
	svc := NewService(&mockStore{}, Options{VerifyBaseURL: "https://app.example.com/staff/verify"}, nil)

	ticket, err := svc.Issue(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	want := "https://app.example.com/staff/verify?token=" + ticket.Token
	if ticket.Payload != want {
		t.Errorf("payload = %q, want %q", ticket.Payload, want)
	}
}

func TestTokenDigests_NoCollisions(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		token, err := newToken()
		if err != nil {
			t.Fatalf("newToken: %v", err)
		}
		digest := hashToken(token)
		if _, dup := seen[digest]; dup {
			t.Fatalf("digest collision after %d tokens", i)
		}
		seen[digest] = struct{}{}
	}
}

// --- verification ---

func TestVerify_Scenario(t *testing.T) {
	store := newMemStore()
	eventID := uuid.New()
	signupID := store.add("Rosa Marchetti", eventID)
	svc := NewService(store, Options{}, nil)
	ctx := context.Background()

	ticket, err := svc.Issue(ctx, signupID, eventID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	res, err := svc.Verify(ctx, ticket.Token, nil, "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", res.Status)
	}
	if res.AttendeeName != "Rosa Marchetti" {
		t.Errorf("attendee name = %q", res.AttendeeName)
	}
	if res.EventID != eventID {
		t.Errorf("event id = %s, want %s", res.EventID, eventID)
	}

	res, err = svc.Verify(ctx, ticket.Token, nil, "")
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if res.Status != StatusAlreadyUsed {
		t.Fatalf("second scan status = %s, want already_used", res.Status)
	}

	res, err = svc.Verify(ctx, "bogus", nil, "")
	if err != nil {
		t.Fatalf("bogus Verify: %v", err)
	}
	if res.Status != StatusInvalid {
		t.Fatalf("bogus status = %s, want invalid", res.Status)
	}
}

func TestVerify_RepeatedScansStayAlreadyUsed(t *testing.T) {
	store := newMemStore()
	eventID := uuid.New()
	signupID := store.add("Theo Okafor", eventID)
	svc := NewService(store, Options{}, nil)
	ctx := context.Background()

	ticket, err := svc.Issue(ctx, signupID, eventID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if res, _ := svc.Verify(ctx, ticket.Token, nil, ""); res.Status != StatusConfirmed {
		t.Fatalf("first scan = %s", res.Status)
	}
	for i := 0; i < 3; i++ {
		res, err := svc.Verify(ctx, ticket.Token, nil, "")
		if err != nil {
			t.Fatalf("scan %d: %v", i+2, err)
		}
		if res.Status != StatusAlreadyUsed {
			t.Fatalf("scan %d status = %s, want already_used", i+2, res.Status)
		}
	}
}

func TestVerify_EmptyAndOversizedInputSkipLookup(t *testing.T) {
	lookups := 0
	store := &mockStore{
		findByTokenHashFn: func(context.Context, string) (*models.Signup, error) {
			lookups++
			return nil, ErrSignupNotFound
		},
	}
	svc := NewService(store, Options{}, nil)

	for _, input := range []string{"", "   ", strings.Repeat("x", 600)} {
		res, err := svc.Verify(context.Background(), input, nil, "")
		if err != nil {
			t.Fatalf("Verify(%q): %v", input, err)
		}
		if res.Status != StatusInvalid {
			t.Errorf("Verify(%q) status = %s, want invalid", input, res.Status)
		}
	}
	if lookups != 0 {
		t.Errorf("store lookups = %d, want 0 for malformed input", lookups)
	}
}

func TestVerify_CorruptedTokenInvalid(t *testing.T) {
	store := newMemStore()
	eventID := uuid.New()
	signupID := store.add("Imani Walker", eventID)
	svc := NewService(store, Options{}, nil)
	ctx := context.Background()

	ticket, err := svc.Issue(ctx, signupID, eventID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	truncated := ticket.Token[:len(ticket.Token)-1]
	flipped := "A" + ticket.Token[1:]
	if flipped == ticket.Token {
		flipped = "B" + ticket.Token[1:]
	}
	for _, bad := range []string{truncated, flipped, ticket.Token + "x"} {
		res, err := svc.Verify(ctx, bad, nil, "")
		if err != nil {
			t.Fatalf("Verify(%q): %v", bad, err)
		}
		if res.Status != StatusInvalid {
			t.Errorf("corrupted token status = %s, want invalid", res.Status)
		}
	}

	// The intact token must still confirm.
	res, err := svc.Verify(ctx, ticket.Token, nil, "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != StatusConfirmed {
		t.Fatalf("intact token status = %s, want confirmed", res.Status)
	}
}

func TestVerify_ReissueInvalidatesOldTicket(t *testing.T) {
	store := newMemStore()
	eventID := uuid.New()
	signupID := store.add("Mateo Reyes", eventID)
	svc := NewService(store, Options{}, nil)
	ctx := context.Background()

	oldTicket, err := svc.Issue(ctx, signupID, eventID)
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	newTicket, err := svc.Issue(ctx, signupID, eventID)
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}

	res, err := svc.Verify(ctx, oldTicket.Token, nil, "")
	if err != nil {
		t.Fatalf("Verify old: %v", err)
	}
	if res.Status != StatusInvalid {
		t.Fatalf("old ticket status = %s, want invalid", res.Status)
	}

	res, err = svc.Verify(ctx, newTicket.Token, nil, "")
	if err != nil {
		t.Fatalf("Verify new: %v", err)
	}
	if res.Status != StatusConfirmed {
		t.Fatalf("new ticket status = %s, want confirmed", res.Status)
	}
}

func TestVerify_ConcurrentScansConfirmExactlyOnce(t *testing.T) {
	store := newMemStore()
	eventID := uuid.New()
	signupID := store.add("Priya Nair", eventID)
	svc := NewService(store, Options{}, nil)
	ctx := context.Background()

	ticket, err := svc.Issue(ctx, signupID, eventID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const scanners = 16
	results := make(chan Status, scanners)
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(scanners)
	for i := 0; i < scanners; i++ {
		go func() {
			defer done.Done()
			start.Wait()
			res, err := svc.Verify(ctx, ticket.Token, nil, "")
			if err != nil {
				t.Errorf("concurrent Verify: %v", err)
				results <- StatusInvalid
				return
			}
			results <- res.Status
		}()
	}
	start.Done()
	done.Wait()
	close(results)

	confirmed, used := 0, 0
	for s := range results {
		switch s {
		case StatusConfirmed:
			confirmed++
		case StatusAlreadyUsed:
			used++
		default:
			t.Errorf("unexpected status %s", s)
		}
	}
	if confirmed != 1 {
		t.Fatalf("confirmed = %d, want exactly 1", confirmed)
	}
	if used != scanners-1 {
		t.Fatalf("already_used = %d, want %d", used, scanners-1)
	}
}

func TestVerify_RecordsActorAndNotes(t *testing.T) {
	store := newMemStore()
	eventID := uuid.New()
	signupID := store.add("Hana Suzuki", eventID)
	svc := NewService(store, Options{}, nil)
	ctx := context.Background()

	ticket, err := svc.Issue(ctx, signupID, eventID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	actor := uuid.New()
	res, err := svc.Verify(ctx, ticket.Token, &actor, "wheelchair access via side door")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != StatusConfirmed {
		t.Fatalf("status = %s", res.Status)
	}

	stored := store.get(signupID)
	if stored.CheckedInBy == nil || *stored.CheckedInBy != actor {
		t.Error("checked_in_by not recorded")
	}
	if stored.CheckInNotes == nil || *stored.CheckInNotes != "wheelchair access via side door" {
		t.Error("check_in_notes not recorded")
	}
	if stored.CheckedInAt == nil {
		t.Error("checked_in_at not recorded")
	}
	if stored.QRTokenHash == nil || *stored.QRTokenHash == ticket.Token {
		t.Error("raw token must never appear at rest")
	}
}

func TestVerify_StoreFailureIsAnErrorNotAStatus(t *testing.T) {
	infra := errors.New("dial tcp: connection refused")

	svc := NewService(&mockStore{
		findByTokenHashFn: func(context.Context, string) (*models.Signup, error) {
			return nil, infra
		},
	}, Options{}, nil)
	if _, err := svc.Verify(context.Background(), "sometoken", nil, ""); !errors.Is(err, infra) {
		t.Fatalf("lookup failure: err = %v, want wrapped infra error", err)
	}

	signup := &models.Signup{ID: uuid.New(), EventID: uuid.New(), FullName: "Leo Brandt"}
	svc = NewService(&mockStore{
		findByTokenHashFn: func(context.Context, string) (*models.Signup, error) {
			return signup, nil
		},
		checkInFn: func(context.Context, uuid.UUID, *uuid.UUID, *string, time.Time) (bool, error) {
			return false, infra
		},
	}, Options{}, nil)
	if _, err := svc.Verify(context.Background(), "sometoken", nil, ""); !errors.Is(err, infra) {
		t.Fatalf("update failure: err = %v, want wrapped infra error", err)
	}
}

func TestVerify_UnwrapsVerifyURLPayload(t *testing.T) {
	store := newMemStore()
	eventID := uuid.New()
	signupID := store.add("Sofia Lindqvist", eventID)
	svc := NewService(store, Options{VerifyBaseURL: "https://app.example.com/staff/verify"}, nil)
	ctx := context.Background()

	ticket, err := svc.Issue(ctx, signupID, eventID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Generic scanner apps post the whole QR payload, not just the token.
	res, err := svc.Verify(ctx, ticket.Payload, nil, "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", res.Status)
	}
}
