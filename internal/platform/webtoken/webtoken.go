// Package webtoken signs and verifies the short-lived tokens used by the
// web surface: per-action XSRF tokens on dashboard forms and admin session
// tokens carried in a cookie.
package webtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// ActionTokenTTL bounds how long a rendered form stays submittable.
	ActionTokenTTL = 2 * time.Hour
	// SessionTokenTTL bounds how long a minted admin session stays valid.
	SessionTokenTTL = 24 * time.Hour

	audienceAction  = "xsrf"
	audienceSession = "session"
)

// ErrInvalidToken reports a token that failed signature, expiry, or
// audience checks.
var ErrInvalidToken = errors.New("invalid token")

// Manager issues and verifies HMAC-signed web tokens.
type Manager struct {
	secret []byte
	now    func() time.Time
}

// NewManager builds a token manager from a shared secret.
func NewManager(secret []byte) (*Manager, error) {
	if len(secret) < 16 {
		return nil, errors.New("token secret must be at least 16 bytes")
	}
	return &Manager{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}, nil
}

// IssueAction signs an XSRF token bound to one form action.
func (m *Manager) IssueAction(action string) (string, error) {
	return m.issue(audienceAction, action, ActionTokenTTL)
}

// VerifyAction checks an XSRF token against the expected form action.
func (m *Manager) VerifyAction(token, action string) error {
	subject, err := m.verify(token, audienceAction)
	if err != nil {
		return err
	}
	if subject != action {
		return fmt.Errorf("%w: action mismatch", ErrInvalidToken)
	}
	return nil
}

// IssueSession signs an admin session token for one user.
func (m *Manager) IssueSession(userID string) (string, error) {
	return m.issue(audienceSession, userID, SessionTokenTTL)
}

// VerifySession checks a session token and returns the user it names.
func (m *Manager) VerifySession(token string) (string, error) {
	return m.verify(token, audienceSession)
}

func (m *Manager) issue(audience, subject string, ttl time.Duration) (string, error) {
	if m == nil {
		return "", errors.New("token manager is not configured")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	now := m.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *Manager) verify(token, audience string) (string, error) {
	if m == nil {
		return "", errors.New("token manager is not configured")
	}
	if strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
