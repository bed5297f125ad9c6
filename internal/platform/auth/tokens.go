// Package auth issues and verifies staff bearer tokens and carries the acting staff member
// on the request context.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	domain "github.com/huanth/bi-a-manager/internal/domain"
)

const (
	defaultIssuer   = "bi-a-manager"
	defaultTokenTTL = 12 * time.Hour
)

var (
	// ErrTokenExpired signals an expired staff token.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals a malformed, forged or foreign token.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

type staffClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenOption customises a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithIssuer sets the iss claim written and required.
func WithIssuer(issuer string) TokenOption {
	return func(t *TokenIssuer) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			t.issuer = issuer
		}
	}
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithTokenClock injects a clock for issuing.
func WithTokenClock(clock func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if clock != nil {
			t.now = clock
		}
	}
}

// TokenIssuer signs and verifies HS256 staff tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs an issuer keyed by secret.
func NewTokenIssuer(secret string, opts ...TokenOption) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	t := &TokenIssuer{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// Issue signs a token for actor.
func (t *TokenIssuer) Issue(actor domain.Actor) (domain.StaffSession, error) {
	if strings.TrimSpace(actor.Username) == "" {
		return domain.StaffSession{}, errors.New("auth: actor username is required")
	}
	now := t.now().UTC()
	expires := now.Add(t.ttl)
	claims := staffClaims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.Username,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return domain.StaffSession{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return domain.StaffSession{Actor: actor, Token: signed, ExpiresAt: expires}, nil
}

// Verify parses token and returns the actor it carries.
func (t *TokenIssuer) Verify(token string) (domain.Actor, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &staffClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		var validation *jwt.ValidationError
		if errors.As(err, &validation) && validation.Errors&jwt.ValidationErrorExpired != 0 {
			return domain.Actor{}, ErrTokenExpired
		}
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !claims.VerifyIssuer(t.issuer, true) {
		return domain.Actor{}, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
	}
	role := domain.UserRole(claims.Role)
	if claims.Subject == "" || (role != domain.UserRoleOwner && role != domain.UserRoleEmployee) {
		return domain.Actor{}, fmt.Errorf("%w: missing subject or role", ErrTokenInvalid)
	}
	return domain.Actor{Username: claims.Subject, Role: role}, nil
}
