package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func fixedVerifier(t *testing.T, secret string, leeway time.Duration, now time.Time) *HMACTokenVerifier {
	t.Helper()
	verifier, err := NewHMACTokenVerifier(secret, leeway)
	if err != nil {
		t.Fatalf("NewHMACTokenVerifier: %v", err)
	}
	verifier.WithClock(func() time.Time { return now })
	return verifier
}

func TestIssuedTokenVerifies(t *testing.T) {
	now := time.Unix(1700000000, 0)
	verifier := fixedVerifier(t, "secret", time.Second, now)
	token, err := verifier.Issue("viewer-7", 30*time.Second)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "viewer-7" || !claims.ExpiresAt.Equal(now.Add(30*time.Second)) || !claims.IssuedAt.Equal(now) {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	now := time.Unix(1700000000, 0)
	issuer := fixedVerifier(t, "secret", 0, now.Add(-time.Minute))
	token, err := issuer.Issue("viewer-7", 10*time.Second)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := fixedVerifier(t, "secret", 0, now).Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
	//1.- Leeway absorbs small clock skew.
	if _, err := fixedVerifier(t, "secret", time.Minute, now).Verify(token); err != nil {
		t.Fatalf("expected leeway to accept token, got %v", err)
	}
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	now := time.Unix(1700000000, 0)
	verifier := fixedVerifier(t, "secret", 0, now)

	other := fixedVerifier(t, "other", 0, now)
	forged, err := other.Issue("viewer-7", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong key, got %v", err)
	}

	//1.- A token without an expiry is refused even when correctly signed.
	unbounded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "viewer-7"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(unbounded); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken without exp, got %v", err)
	}

	//2.- Algorithms other than HS256 are refused.
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "viewer-7",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(hs512); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512, got %v", err)
	}

	if _, err := verifier.Verify("  "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for blank token, got %v", err)
	}
	if _, err := NewHMACTokenVerifier(" ", 0); err == nil {
		t.Fatal("expected empty secret to be rejected")
	}
}
