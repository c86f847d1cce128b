package utils

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "ADMIN", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	id, _ := claims.UserID()
	if id != 42 || claims.Role != "ADMIN" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	good, _ := NewAccessToken("s3cret", 1, "USER", time.Minute)
	expired, _ := NewAccessToken("s3cret", 1, "USER", -time.Minute)

	cases := map[string]string{
		"wrong secret": good.Token,
		"expired":      expired.Token,
		"garbage":      "not.a.jwt",
	}
	for name, raw := range cases {
		secret := "s3cret"
		if name == "wrong secret" {
			secret = "other"
		}
		if _, err := ParseAccessToken(secret, raw); err != ErrInvalidToken {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestRefreshTokenHash(t *testing.T) {
	rt, err := NewRefreshToken(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("raw length = %d", len(rt.Raw))
	}
	h := HashRefreshRaw(rt.Raw)
	if len(h) != 64 || h == rt.Raw || h != HashRefreshRaw(rt.Raw) {
		t.Fatalf("unexpected hash %q", h)
	}
}

func TestPasswords(t *testing.T) {
	if err := CheckPassword("short"); err != ErrWeakPassword {
		t.Fatalf("short password accepted")
	}
	if err := CheckPassword(strings.Repeat("x", 73)); err != ErrWeakPassword {
		t.Fatalf("overlong password accepted")
	}
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(hash, "correct horse") || VerifyPassword(hash, "wrong horse") {
		t.Fatal("verify mismatch")
	}
}
