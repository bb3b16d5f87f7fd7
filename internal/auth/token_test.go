package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var secret = []byte("test-secret")

func TestIssueParse(t *testing.T) {
	tok, err := Issue(secret, "u-1", "client", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := Parse(secret, tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.ID != "u-1" || claims.Role != "client" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseRejects(t *testing.T) {
	expired, _ := Issue(secret, "u-1", "worker", time.Now().Add(-2*time.Hour), time.Hour)
	otherKey, _ := Issue([]byte("other"), "u-1", "worker", time.Now(), time.Hour)
	noRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:               "u-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(secret)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{ID: "u-1", Role: "worker"}).SignedString(secret)
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		ID: "u-1", Role: "client",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"expired":     expired,
		"wrong key":   otherKey,
		"no role":     noRole,
		"no expiry":   noExpiry,
		"alg none":    unsigned,
		"garbage":     "not.a.token",
		"empty input": "",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(secret, tok); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIssueEmptySecret(t *testing.T) {
	if _, err := Issue(nil, "u-1", "client", time.Now(), time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}
