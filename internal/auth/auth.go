// Package auth verifies role passwords server-side and issues time-limited
// session tokens. Password hashes and the signing secret come from
// configuration; nothing secret ships to the client.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the access level carried by a session.
type Role string

const (
	RoleGuest Role = "guest"
	RoleAdmin Role = "admin"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrInvalidToken = errors.New("invalid or expired token")

const defaultSessionTTL = 24 * time.Hour

// Service issues and verifies session tokens.
type Service struct {
	guestHash string
	adminHash string
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSessionTTL overrides the session lifetime.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) { s.ttl = d }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService takes hex SHA-256 hashes of the guest and admin passwords and
// the token signing secret.
func NewService(guestHash, adminHash string, secret []byte, opts ...Option) *Service {
	s := &Service{
		guestHash: guestHash,
		adminHash: adminHash,
		secret:    secret,
		ttl:       defaultSessionTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashPassword returns the hex SHA-256 digest of password. Used to derive
// the configuration values NewService expects.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Login verifies password for role and returns a signed session token.
func (s *Service) Login(password string, role Role) (string, time.Time, error) {
	var want string
	switch role {
	case RoleGuest:
		want = s.guestHash
	case RoleAdmin:
		want = s.adminHash
	default:
		return "", time.Time{}, fmt.Errorf("unknown role %q", role)
	}

	got := HashPassword(password)
	if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return "", time.Time{}, ErrInvalidCredentials
	}

	expires := s.now().Add(s.ttl)
	claims := jwt.MapClaims{
		"role": string(role),
		"sid":  uuid.NewString(),
		"iat":  s.now().Unix(),
		"exp":  expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	return token, expires, nil
}

// Verify parses the token and returns its role.
func (s *Service) Verify(token string) (Role, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	switch Role(role) {
	case RoleGuest, RoleAdmin:
		return Role(role), nil
	}
	return "", ErrInvalidToken
}

// Allows reports whether a session with have satisfies the want requirement.
// Admin sessions satisfy guest requirements, never the reverse.
func Allows(have, want Role) bool {
	if have == want {
		return true
	}
	return have == RoleAdmin && want == RoleGuest
}
