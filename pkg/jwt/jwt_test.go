package jwtutil

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestParseAccessToken_RoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	claims := NewClaims("3c1f3c4e-1d7b-4f55-9d8b-0e6f8b1b2a10", " Facility_Admin ", "f5a5e1b2-6b1c-4e1a-9a55-2f0c4bba3d21", time.Hour)
	token, err := GenerateAccessToken(claims, key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	parsed, err := ParseAccessToken(token, &key.PublicKey)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if parsed.Role != "facility_admin" {
		t.Fatalf("expected normalized role, got %q", parsed.Role)
	}
	if parsed.FacilityID != "f5a5e1b2-6b1c-4e1a-9a55-2f0c4bba3d21" {
		t.Fatalf("unexpected facility id %q", parsed.FacilityID)
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	claims := NewClaims("user-1", "customer", "", -time.Minute)
	token, err := GenerateAccessToken(claims, key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := ParseAccessToken(token, &key.PublicKey); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseAccessToken_WrongKey(t *testing.T) {
	signer, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	token, err := GenerateAccessToken(NewClaims("user-1", "admin", "", time.Hour), signer)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ParseAccessToken(token, &other.PublicKey); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseAccessToken_FallsBackToSubject(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	claims := NewClaims("", "customer", "", time.Hour)
	claims.Subject = "user-from-sub"
	token, err := GenerateAccessToken(claims, key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	parsed, err := ParseAccessToken(token, &key.PublicKey)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if parsed.UserID != "user-from-sub" {
		t.Fatalf("expected subject fallback, got %q", parsed.UserID)
	}
}
