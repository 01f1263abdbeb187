package magiclink

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const user = "ed25519:q83vEjRWeJCrze8SNFZ4kKvN7xI0VniQq83vEjRWeJA="

func testConfig(now time.Time) Config {
	return Config{
		Issuer:   "pfb-test",
		Audience: "pfb-feedback",
		BaseURL:  "https://feedback.example/f/",
		TTL:      time.Hour,
		Now:      func() time.Time { return now },
	}
}

func newPair(t *testing.T, cfg Config) (*Issuer, *Verifier) {
	t.Helper()
	iss, err := NewIssuer(cfg, bytes.Repeat([]byte{4}, ed25519.SeedSize))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	ver, err := NewVerifier(cfg, iss.PublicKey())
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return iss, ver
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	iss, ver := newPair(t, testConfig(now))

	link, err := iss.Issue(7, user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(link.URL, "https://feedback.example/f/7/") {
		t.Fatalf("unexpected link %s", link.URL)
	}
	if !link.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %v", link.ExpiresAt)
	}

	claims, err := ver.Verify(link.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.ServiceID != 7 || claims.User != user || claims.Issuer != "pfb-test" || claims.JWTID == "" {
		t.Fatalf("claims = %+v", claims)
	}

	fromURL, err := ver.VerifyURL(link.URL)
	if err != nil {
		t.Fatalf("VerifyURL: %v", err)
	}
	if fromURL.JWTID != claims.JWTID {
		t.Fatalf("VerifyURL returned different claims")
	}

	other, err := iss.Issue(7, user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if other.Token == link.Token {
		t.Fatalf("expected a unique jti per link")
	}
}

func TestVerifyRejects(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	iss, ver := newPair(t, testConfig(now))
	link, err := iss.Issue(3, user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	later := testConfig(now.Add(2 * time.Hour))
	expiredVer, err := NewVerifier(later, iss.PublicKey())
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if _, err := expiredVer.Verify(link.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expired: got %v", err)
	}

	wrongAud := testConfig(now)
	wrongAud.Audience = "someone-else"
	audVer, _ := NewVerifier(wrongAud, iss.PublicKey())
	if _, err := audVer.Verify(link.Token); !errors.Is(err, ErrMismatch) {
		t.Fatalf("audience: got %v", err)
	}

	otherIss, err := NewIssuer(testConfig(now), bytes.Repeat([]byte{5}, ed25519.SeedSize))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	forged, _ := otherIss.Issue(3, user)
	if _, err := ver.Verify(forged.Token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("forged: got %v", err)
	}

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": "pfb-test"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign HS256: %v", err)
	}
	if _, err := ver.Verify(hs); !errors.Is(err, ErrInvalid) {
		t.Fatalf("hs256: got %v", err)
	}
	if _, err := ver.Verify(" "); !errors.Is(err, ErrInvalid) {
		t.Fatalf("empty: got %v", err)
	}

	u, _ := url.Parse(link.URL)
	u.Path = strings.Replace(u.Path, "/3/", "/4/", 1)
	if _, err := ver.VerifyURL(u.String()); !errors.Is(err, ErrMismatch) {
		t.Fatalf("path mismatch: got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := testConfig(time.Now())
	cfg.TTL = 0
	if _, err := NewIssuer(cfg, bytes.Repeat([]byte{1}, 32)); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("zero ttl: got %v", err)
	}
	if _, err := NewIssuer(testConfig(time.Now()), []byte{1}); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("short seed: got %v", err)
	}
	if _, err := NewVerifier(testConfig(time.Now()), nil); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("missing key: got %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PFB_LINK_ISSUER", " acme ")
	t.Setenv("PFB_LINK_TTL", "30m")
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "acme" || cfg.TTL != 30*time.Minute || cfg.Audience != "pfb-feedback" {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("PFB_LINK_TTL", "soon")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatalf("invalid duration should fail")
	}
}
