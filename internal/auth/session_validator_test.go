package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testIssuer = "agora-portal"

var testSecret = []byte("test-signing-secret")

func issueToken(t *testing.T, subject string, roles []string, issuer string, expiresAt time.Time) string {
	t.Helper()
	claims := SessionClaims{
		UserRoles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newValidator(t *testing.T, now time.Time) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: testSecret,
		Issuer:        testIssuer,
		Clock:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func TestValidateTokenAcceptsValidToken(t *testing.T) {
	now := time.Unix(1750000000, 0)
	validator := newValidator(t, now)
	token := issueToken(t, "17", []string{"admin"}, testIssuer, now.Add(time.Hour))

	claims, err := validator.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userID, err := claims.UserID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != 17 {
		t.Fatalf("expected user id 17, got %d", userID)
	}
	if !claims.HasRole("admin") {
		t.Fatalf("expected admin role")
	}
	if claims.HasRole("moderator") {
		t.Fatalf("unexpected moderator role")
	}
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	now := time.Unix(1750000000, 0)
	validator := newValidator(t, now)
	token := issueToken(t, "17", nil, testIssuer, now.Add(-time.Minute))

	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected ErrExpiredSessionToken, got %v", err)
	}
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	now := time.Unix(1750000000, 0)
	validator := newValidator(t, now)
	token := issueToken(t, "17", nil, "other-portal", now.Add(time.Hour))

	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}
}

func TestValidateTokenRejectsEmptyToken(t *testing.T) {
	validator := newValidator(t, time.Unix(1750000000, 0))

	if _, err := validator.ValidateToken("  "); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected ErrMissingSessionToken, got %v", err)
	}
}

func TestUserIDRejectsNonNumericSubject(t *testing.T) {
	claims := SessionClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-number"}}
	if _, err := claims.UserID(); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}

	claims = SessionClaims{}
	if _, err := claims.UserID(); !errors.Is(err, ErrMissingSessionSubject) {
		t.Fatalf("expected ErrMissingSessionSubject, got %v", err)
	}
}
