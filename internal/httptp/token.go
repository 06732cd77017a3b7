package httptp

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenSource provides the bearer token sent with every request.
// Implementations must be safe for concurrent use.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed personal access token.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	_ = ctx
	return string(s), nil
}

// AppTokenSource signs short-lived RS256 JWTs that authenticate as a
// GitHub App. Tokens are reused until a minute before they expire.
type AppTokenSource struct {
	appID string
	key   *rsa.PrivateKey
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewAppTokenSource parses a PEM encoded RSA private key.
func NewAppTokenSource(appID string, pemKey []byte) (*AppTokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("httptp: app key: %w", err)
	}
	return NewAppTokenSourceWithKey(appID, key), nil
}

func NewAppTokenSourceWithKey(appID string, key *rsa.PrivateKey) *AppTokenSource {
	// GitHub rejects app tokens that live longer than ten minutes.
	return &AppTokenSource{appID: appID, key: key, ttl: 9 * time.Minute, now: time.Now}
}

func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.token != "" && now.Add(time.Minute).Before(s.expires) {
		return s.token, nil
	}
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    s.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("httptp: sign app token: %w", err)
	}
	s.token, s.expires = signed, expires
	return signed, nil
}
