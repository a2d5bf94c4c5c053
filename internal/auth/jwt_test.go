package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-at-least-16-chars!!"

func testTokens(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService(t *testing.T) {
	cases := []struct {
		name    string
		secret  string
		ttl     time.Duration
		wantTTL time.Duration
		wantErr bool
	}{
		{name: "secret too short", secret: "short", ttl: time.Hour, wantErr: true},
		{name: "sixteen chars is enough", secret: "this-is-16-chars", ttl: time.Hour, wantTTL: time.Hour},
		{name: "zero ttl falls back", secret: testSecret, ttl: 0, wantTTL: DefaultTokenTTL},
		{name: "negative ttl falls back", secret: testSecret, ttl: -time.Minute, wantTTL: DefaultTokenTTL},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ts, err := NewTokenService(c.secret, c.ttl)
			if c.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ts.TTL() != c.wantTTL {
				t.Errorf("TTL() = %v, want %v", ts.TTL(), c.wantTTL)
			}
		})
	}
}

func TestGenerateValidate(t *testing.T) {
	ts := testTokens(t)

	a, err := ts.Generate("cq0author")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Count(a, ".") != 2 {
		t.Fatalf("%q is not a compact JWS", a)
	}
	b, _ := ts.Generate("cq0someone")
	if a == b {
		t.Error("different users got the same token")
	}

	got, err := ts.Validate(a)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got != "cq0author" {
		t.Errorf("subject = %q, want cq0author", got)
	}
}

func TestValidate_Expired(t *testing.T) {
	ts := testTokens(t)

	stale, err := ts.GenerateWithDuration("cq0author", -time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration: %v", err)
	}
	if _, err := ts.Validate(stale); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Validate(expired) = %v, want ErrTokenExpired", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := testTokens(t)
	good, _ := ts.Generate("cq0author")

	other, _ := NewTokenService("another-secret-entirely-32-chars", time.Hour)
	foreign, _ := other.Generate("cq0author")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "attacker",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("building alg=none token: %v", err)
	}

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "cq0author",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	misissued, _ := wrongIssuer.SignedString([]byte(testSecret))

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))

	cases := map[string]string{
		"empty":         "",
		"garbage":       "not.a.jwt.token",
		"bad signature": good[:len(good)-3] + "xxx",
		"other secret":  foreign,
		"alg none":      unsigned,
		"wrong issuer":  misissued,
		"missing sub":   noSubject,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if sub, err := ts.Validate(token); err == nil {
				t.Fatalf("Validate accepted the token (sub=%q)", sub)
			}
		})
	}
}
