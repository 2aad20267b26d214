package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dkeye/danmaku/internal/domain"
)

func TestIssueVerifyUser(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	tok, err := m.IssueUser(domain.User{ID: 42, LastChange: 1234})
	require.NoError(t, err)

	claims, err := m.Verify(tok, KindUser)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.ID)
	assert.EqualValues(t, 1234, claims.StatusChange)

	_, err = m.Verify(tok, KindAdmin)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestVerifyFailures(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	good, err := m.IssueAdmin()
	require.NoError(t, err)

	past := NewTokenManager("secret", time.Hour)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := past.IssueAdmin()
	require.NoError(t, err)

	otherKey, err := NewTokenManager("other", time.Hour).IssueAdmin()
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Kind: KindAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "valid", token: good},
		{name: "expired", token: expired, want: ErrExpiredToken},
		{name: "foreign key", token: otherKey, want: ErrSignature},
		{name: "alg none", token: unsigned, want: ErrInvalidToken},
		{name: "garbage", token: "a.b.c", want: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token, KindAdmin)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.NoError(t, h.Verify(hash, "hunter22"))
	assert.ErrorIs(t, h.Verify(hash, "hunter23"), ErrPasswordMismatch)
}
