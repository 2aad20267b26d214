// Package auth issues and verifies connection credentials and hashes passwords.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/danmaku/internal/domain"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrSignature      = errors.New("token signature invalid")
	ErrWrongTokenKind = errors.New("wrong token kind")
)

const (
	KindUser  = "user"
	KindAdmin = "admin"

	DefaultTTL = 24 * time.Hour
	issuer     = "danmaku"
)

// Claims carry the account id and the account's LastChange stamp at issue time.
type Claims struct {
	ID           domain.UserID `json:"id"`
	StatusChange int64         `json:"statusChange"`
	Kind         string        `json:"kind"`
	jwt.RegisteredClaims
}

// TokenManager signs HS256 credentials.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueUser signs a credential bound to the account's current LastChange.
func (m *TokenManager) IssueUser(u domain.User) (string, error) {
	return m.issue(u.ID, u.LastChange, KindUser)
}

func (m *TokenManager) IssueAdmin() (string, error) {
	return m.issue(domain.AdminID, 0, KindAdmin)
}

func (m *TokenManager) issue(id domain.UserID, stamp int64, kind string) (string, error) {
	now := m.now()
	claims := Claims{
		ID:           id,
		StatusChange: stamp,
		Kind:         kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(id), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a credential of the given kind.
func (m *TokenManager) Verify(token, kind string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(issuer))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignature
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}
