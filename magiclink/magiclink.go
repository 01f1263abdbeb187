// Package magiclink issues and verifies the signed links that invite a user
// to leave feedback for a service.
//
// A link has the form {base}/{service_id}/{user}?t={token} where token is an
// EdDSA JWT binding the service id and the user's issuer key.
package magiclink

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/privfeedback/pfb/ledger"
)

var (
	ErrInvalid    = errors.New("magiclink: invalid token")
	ErrExpired    = errors.New("magiclink: token is expired")
	ErrMismatch   = errors.New("magiclink: token does not match link")
	ErrNotEnabled = errors.New("magiclink: signer is not configured")
)

// Claims are the validated contents of a link token.
type Claims struct {
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	JWTID     string
	ServiceID ledger.ServiceID
	User      string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	ServiceID string `json:"service_id"`
	User      string `json:"user"`
}

// Link is an issued invitation link.
type Link struct {
	URL       string
	Token     string
	ExpiresAt time.Time
}

// Issuer signs links.
type Issuer struct {
	cfg Config
	key ed25519.PrivateKey
}

func NewIssuer(cfg Config, seed []byte) (*Issuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes", ErrNotEnabled, ed25519.SeedSize)
	}
	return &Issuer{cfg: cfg, key: ed25519.NewKeyFromSeed(seed)}, nil
}

// PublicKey returns the key a Verifier needs.
func (i *Issuer) PublicKey() ed25519.PublicKey {
	return i.key.Public().(ed25519.PublicKey)
}

func (i *Issuer) Issue(id ledger.ServiceID, user string) (Link, error) {
	if id == 0 || strings.TrimSpace(user) == "" {
		return Link{}, fmt.Errorf("magiclink: service id and user are required")
	}
	now := i.cfg.now().UTC().Truncate(time.Second)
	exp := now.Add(i.cfg.TTL)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		ServiceID: id.String(),
		User:      user,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(i.key)
	if err != nil {
		return Link{}, fmt.Errorf("magiclink: sign: %w", err)
	}
	u := strings.TrimRight(i.cfg.BaseURL, "/") + "/" + id.String() + "/" + url.PathEscape(user) +
		"?t=" + url.QueryEscape(token)
	return Link{URL: u, Token: token, ExpiresAt: exp}, nil
}

// Verifier checks link tokens.
type Verifier struct {
	cfg Config
	key ed25519.PublicKey
}

func NewVerifier(cfg Config, key ed25519.PublicKey) (*Verifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes", ErrNotEnabled, ed25519.PublicKeySize)
	}
	return &Verifier{cfg: cfg, key: key}, nil
}

// Verify checks the signature, issuer, audience, expiry and jti of token.
func (v *Verifier) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalid
	}
	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if parsed.Issuer == "" || parsed.Issuer != v.cfg.Issuer {
		return Claims{}, fmt.Errorf("%w: issuer", ErrMismatch)
	}
	if !audienceContains(parsed.Audience, v.cfg.Audience) {
		return Claims{}, fmt.Errorf("%w: audience", ErrMismatch)
	}
	if parsed.ID == "" {
		return Claims{}, fmt.Errorf("%w: jti is required", ErrInvalid)
	}
	if _, err := uuid.Parse(parsed.ID); err != nil {
		return Claims{}, fmt.Errorf("%w: jti: %v", ErrInvalid, err)
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: exp is required", ErrInvalid)
	}
	now := v.cfg.now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, ErrExpired
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return Claims{}, fmt.Errorf("%w: not active yet", ErrInvalid)
	}
	id, err := ledger.ParseServiceID(parsed.ServiceID)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if strings.TrimSpace(parsed.User) == "" {
		return Claims{}, fmt.Errorf("%w: user is required", ErrInvalid)
	}

	claims := Claims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
		ServiceID: id,
		User:      parsed.User,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// VerifyURL verifies the token of a link and checks that the path names the
// same service and user as the token.
func (v *Verifier) VerifyURL(raw string) (Claims, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	claims, err := v.Verify(u.Query().Get("t"))
	if err != nil {
		return Claims{}, err
	}
	parts := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(parts) < 2 {
		return Claims{}, fmt.Errorf("%w: path", ErrMismatch)
	}
	user, err := url.PathUnescape(parts[len(parts)-1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if parts[len(parts)-2] != claims.ServiceID.String() || user != claims.User {
		return Claims{}, fmt.Errorf("%w: path", ErrMismatch)
	}
	return claims, nil
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}
