package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lumen-events/backend/internal/models"
)

func TestJWT_RoundTripCarriesTypedRole(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	userID := uuid.New()

	token, err := svc.Generate(userID, "door@example.com", models.RoleStaff)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("user id = %s, want %s", claims.UserID, userID)
	}
	if claims.Email != "door@example.com" {
		t.Errorf("email = %q", claims.Email)
	}
	if claims.Role != models.RoleStaff {
		t.Errorf("role = %q, want %q", claims.Role, models.RoleStaff)
	}
	if claims.Issuer != tokenIssuer {
		t.Errorf("issuer = %q, want %q", claims.Issuer, tokenIssuer)
	}
}

func TestJWT_RejectsWrongKey(t *testing.T) {
	token, err := NewJWTService("other-secret", 1).Generate(uuid.New(), "x@example.com", models.RoleAdmin)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := NewJWTService("test-secret", 1).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestJWT_RejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret", -1)
	token, err := svc.Generate(uuid.New(), "x@example.com", models.RoleParticipant)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestJWT_RejectsForeignIssuerAndUnknownRole(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	sign := func(c Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	expires := jwt.NewNumericDate(time.Now().Add(time.Hour))

	foreign := sign(Claims{
		UserID: uuid.New(), Email: "x@example.com", Role: models.RoleStaff,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: expires},
	})
	if _, err := svc.Validate(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign issuer: err = %v, want ErrInvalidToken", err)
	}

	badRole := sign(Claims{
		UserID: uuid.New(), Email: "x@example.com", Role: "superuser",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer, ExpiresAt: expires},
	})
	if _, err := svc.Validate(badRole); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unknown role: err = %v, want ErrInvalidToken", err)
	}
}
