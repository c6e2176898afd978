// Package auth issues and checks the admin session used by the dashboard API.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"shopify-preorder-sync/internal/config"
)

const (
	SessionCookieName = "preorder_session"
	sessionIssuer     = "shopify-preorder-sync"
	defaultSessionTTL = 12 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrLoginDisabled      = errors.New("admin login is not configured")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Sessions struct {
	secret       []byte
	ttl          time.Duration
	adminEmail   string
	passwordHash []byte
	now          func() time.Time
}

func NewSessions(cfg config.AuthConfig) *Sessions {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Sessions{
		secret:       []byte(cfg.SessionSecret),
		ttl:          ttl,
		adminEmail:   normalizeEmail(cfg.AdminEmail),
		passwordHash: []byte(strings.TrimSpace(cfg.AdminPasswordHash)),
		now:          time.Now,
	}
}

func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// CheckCredentials compares against the configured admin account.
func (s *Sessions) CheckCredentials(email, password string) error {
	if s.adminEmail == "" || len(s.passwordHash) == 0 {
		return ErrLoginDisabled
	}
	if normalizeEmail(email) != s.adminEmail {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Sessions) Issue(email string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("auth: session secret is empty")
	}
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		Email: normalizeEmail(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   normalizeEmail(email),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign session: %w", err)
	}
	return token, expires, nil
}

func (s *Sessions) Verify(token string) (*Claims, error) {
	if token == "" || len(s.secret) == 0 {
		return nil, ErrInvalidSession
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Email != s.adminEmail {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
