// Package jwt emite y verifica access tokens HS256 propios del servicio.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"pet-vaccination-clinic/internal/ports/auth"
)

const (
	DefaultTTL        = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// valores del claim typ; un token sin typ se toma como access
const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	ErrSecretRequired = errors.New("jwt: secret is required")
	ErrInvalidToken   = errors.New("jwt: invalid token")
)

type Config struct {
	Secret     string
	Issuer     string
	TTL        time.Duration
	RefreshTTL time.Duration
}

type claims struct {
	Type     string `json:"typ,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	IsStaff  bool   `json:"is_staff"`
	jwtlib.RegisteredClaims
}

// Service implementa auth.TokenIssuer y auth.AuthVerifier con la misma clave.
type Service struct {
	secret     []byte
	issuer     string
	ttl        time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func New(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Service{
		secret:     []byte(secret),
		issuer:     strings.TrimSpace(cfg.Issuer),
		ttl:        ttl,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (s *Service) Issue(_ context.Context, c auth.Claims) (string, time.Time, error) {
	if strings.TrimSpace(c.UserID) == "" {
		return "", time.Time{}, errors.New("jwt: user id is required")
	}

	return s.sign(claims{
		Type:     typeAccess,
		Username: c.Username,
		Email:    c.Email,
		IsStaff:  c.IsStaff,
	}, c.UserID, s.ttl)
}

func (s *Service) IssueRefresh(_ context.Context, userID string) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, errors.New("jwt: user id is required")
	}
	return s.sign(claims{Type: typeRefresh}, userID, s.refreshTTL)
}

func (s *Service) sign(c claims, subject string, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)

	c.RegisteredClaims = jwtlib.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(exp),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	// el token lleva segundos enteros
	return signed, exp.Truncate(time.Second), nil
}

// Verify acepta solo access tokens.
func (s *Service) Verify(_ context.Context, token string) (auth.Claims, error) {
	c, err := s.parse(token)
	if err != nil {
		return auth.Claims{}, err
	}
	if c.Type == typeRefresh {
		return auth.Claims{}, fmt.Errorf("%w: refresh token used as access token", ErrInvalidToken)
	}

	out := auth.Claims{
		UserID:   c.Subject,
		Username: c.Username,
		Email:    c.Email,
		IsStaff:  c.IsStaff,
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return out, nil
}

func (s *Service) VerifyRefresh(_ context.Context, token string) (string, error) {
	c, err := s.parse(token)
	if err != nil {
		return "", err
	}
	if c.Type != typeRefresh {
		return "", fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}
	return c.Subject, nil
}

func (s *Service) parse(token string) (claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return claims{}, ErrInvalidToken
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(s.now),
		jwtlib.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(s.issuer))
	}

	var c claims
	_, err := jwtlib.ParseWithClaims(token, &c, func(*jwtlib.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(c.Subject) == "" {
		return claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return c, nil
}
