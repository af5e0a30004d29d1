package loginapp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionCookie  = "session"
	RememberCookie = "remember_me"
	FlashCookie    = "flash"

	issuer = "loginsuite"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session timed out")
)

// Session is the state carried in the signed session cookie.
type Session struct {
	Email string
	Role  string
	// Token identifies the login that created the session. Sessions restored
	// from the remember-me cookie have none.
	Token        string
	LastActivity time.Time
}

type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Token string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies session and remember-me tokens. The session
// expires after Timeout without activity; Touch slides the window.
type Sessions struct {
	secret      []byte
	timeout     time.Duration
	rememberFor time.Duration
	nowFn       func() time.Time
}

// NewSessions returns a signer. An empty secret is replaced by a random key,
// so tokens do not survive a restart.
func NewSessions(secret string, timeout, rememberFor time.Duration) (*Sessions, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("rand.Read: %w", err)
		}
	}

	return &Sessions{secret: key, timeout: timeout, rememberFor: rememberFor, nowFn: time.Now}, nil
}

func (m *Sessions) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("jwt.Token.SignedString: %w", err)
	}

	return signed, nil
}

func (m *Sessions) parse(raw string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(
		raw, claims, func(*jwt.Token) (any, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.nowFn),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrSessionExpired
		}
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	return nil
}

// Issue signs s with LastActivity set to now.
func (m *Sessions) Issue(s Session) (string, error) {
	now := m.nowFn()

	return m.sign(
		sessionClaims{
			Email: s.Email,
			Role:  s.Role,
			Token: s.Token,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				Subject:   s.Email,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			},
		},
	)
}

// Parse verifies a session token. An idle session yields ErrSessionExpired.
func (m *Sessions) Parse(raw string) (Session, error) {
	var claims sessionClaims
	if err := m.parse(raw, &claims); err != nil {
		return Session{}, err
	}

	s := Session{Email: claims.Email, Role: claims.Role, Token: claims.Token}
	if claims.IssuedAt != nil {
		s.LastActivity = claims.IssuedAt.Time
	}

	return s, nil
}

// Remember signs a long lived token naming email.
func (m *Sessions) Remember(email string) (string, error) {
	now := m.nowFn()

	return m.sign(
		jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.rememberFor)),
		},
	)
}

// Remembered returns the email of a valid remember-me token.
func (m *Sessions) Remembered(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	if err := m.parse(raw, &claims); err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", ErrInvalidSession
	}

	return claims.Subject, nil
}

func (m *Sessions) Timeout() time.Duration {
	return m.timeout
}

func (m *Sessions) RememberFor() time.Duration {
	return m.rememberFor
}
