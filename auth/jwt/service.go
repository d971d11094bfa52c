// Package jwt is the session token codec: it issues and verifies the signed
// claims token presented on the Authorization header.
//
// Verification is all-or-nothing. A structural, signature, or expiry failure
// yields the same ErrInvalidToken so callers can never tell why a token was
// rejected.
package jwt

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/base-api/errors"
)

// ErrInvalidToken is the sentinel for errors.Is checks. Verify returns a
// fresh value per failure so callers decorating one error never mutate
// another caller's.
var ErrInvalidToken = apperrors.InvalidToken()

// Claims is the structured payload embedded in a session token. Immutable
// once issued; the signature and expiry are the only integrity guarantees.
// Role is trusted as-is from the token, never re-derived.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	gojwt.RegisteredClaims
}

// Service issues and verifies session tokens.
type Service struct {
	cfg Config
}

// NewService creates a token codec from config. The signing secret is loaded
// once here and held for the process lifetime.
func NewService(cfg *Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{cfg: *cfg}, nil
}

// TTL returns the configured token validity window.
func (s *Service) TTL() time.Duration {
	return s.cfg.TokenTTL
}

// Issue creates a signed token for the given identity with
// issued_at = now and expires_at = now + the configured window.
func (s *Service) Issue(userID, role string) (string, error) {
	return s.IssueAt(userID, role, time.Now())
}

// IssueAt is Issue with an explicit issue time.
func (s *Service) IssueAt(userID, role string, now time.Time) (string, error) {
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	token := gojwt.NewWithClaims(s.cfg.signingMethod(), claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Verify decodes the token, checks its signature and expiry, and returns the
// embedded claims. Any failure yields ErrInvalidToken.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := gojwt.ParseWithClaims(tokenString, claims, s.keyFunc, s.parserOptions()...)
	if err != nil || !token.Valid {
		return nil, apperrors.InvalidToken()
	}
	return claims, nil
}

// keyFunc is the jwt.Keyfunc used during token parsing.
func (s *Service) keyFunc(token *gojwt.Token) (interface{}, error) {
	expected := s.cfg.signingMethod()
	if token.Method.Alg() != expected.Alg() {
		return nil, fmt.Errorf("jwt: unexpected signing method: %s", token.Method.Alg())
	}
	return []byte(s.cfg.Secret), nil
}

// parserOptions returns jwt.ParserOption based on config.
func (s *Service) parserOptions() []gojwt.ParserOption {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{s.cfg.signingMethod().Alg()}),
		gojwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.cfg.Issuer))
	}
	return opts
}
