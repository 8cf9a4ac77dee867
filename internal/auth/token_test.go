package auth

import (
	"context"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/astro-gateway/internal/domain"
)

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestTokenManagerRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	token, exp, err := tm.GenerateToken("user-1", domain.RoleAstromegistusCoach)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)

	role, err := tm.VerifyRole(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAstromegistusCoach, role)
}

func TestTokenManagerRejects(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	past := time.Now().Add(-time.Hour)

	cases := map[string]string{
		"empty":     "",
		"malformed": "not-a-jwt",
		"wrong secret": signClaims(t, jwt.SigningMethodHS256, []byte("other"), &Claims{
			Role:             "PAID",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}),
		"expired": signClaims(t, jwt.SigningMethodHS256, []byte("secret"), &Claims{
			Role:             "PAID",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(past)},
		}),
		"no expiry": signClaims(t, jwt.SigningMethodHS256, []byte("secret"), &Claims{Role: "PAID"}),
		"alg none": signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, &Claims{
			Role:             "ADMIN",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}),
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tm.VerifyRole(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyRoleDefaultsUnknownRoleToGuest(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token := signClaims(t, jwt.SigningMethodHS256, []byte("secret"), &Claims{
		Role:             "WIZARD",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})

	role, err := tm.VerifyRole(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleGuest, role)
}

func TestVerifyRoleHonoursCancelledContext(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken("u", domain.RolePaid)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tm.VerifyRole(ctx, token)
	assert.ErrorIs(t, err, context.Canceled)
}
