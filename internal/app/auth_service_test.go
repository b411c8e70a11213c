package app_test

import (
	"context"
	"testing"
	"time"

	"focusblock/internal/app"
	"focusblock/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-that-is-long-enough")

func TestIssueAndValidateToken(t *testing.T) {
	svc := app.NewAuthService(testSecret)

	tests := []struct {
		name string
		role domain.Role
		want domain.Role
	}{
		{"user", domain.RoleUser, domain.RoleUser},
		{"admin", domain.RoleAdmin, domain.RoleAdmin},
		{"unknown role falls back", domain.Role("OWNER"), domain.RoleUser},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok, err := svc.IssueToken("alice", tc.role)
			require.NoError(t, err)

			id, err := svc.ValidateToken(context.Background(), tok)
			require.NoError(t, err)
			assert.Equal(t, "alice", id.UserID)
			assert.Equal(t, tc.want, id.Role)
		})
	}
}

func TestIssueToken_RequiresUser(t *testing.T) {
	svc := app.NewAuthService(testSecret)
	_, err := svc.IssueToken("  ", domain.RoleUser)
	assert.Error(t, err)
}

func TestValidateToken_Missing(t *testing.T) {
	svc := app.NewAuthService(testSecret)

	_, err := svc.ValidateToken(context.Background(), "")
	require.ErrorIs(t, err, app.ErrUnauthorized)
	assert.ErrorIs(t, err, app.ErrMissingToken)
	assert.Equal(t, "No token, authorization denied", err.Error())
}

func TestValidateToken_Expired(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := issued
	svc := app.NewAuthService(testSecret,
		app.WithTokenTTL(time.Hour),
		app.WithAuthClock(func() time.Time { return now }),
	)
	tok, err := svc.IssueToken("alice", domain.RoleUser)
	require.NoError(t, err)

	now = issued.Add(2 * time.Hour)
	_, err = svc.ValidateToken(context.Background(), tok)
	require.ErrorIs(t, err, app.ErrUnauthorized)
	assert.ErrorIs(t, err, app.ErrTokenExpired)
	assert.Equal(t, "Token expired", err.Error())
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := app.NewAuthService(testSecret)

	other, err := app.NewAuthService([]byte("another-secret")).IssueToken("alice", domain.RoleAdmin)
	require.NoError(t, err)

	foreignIssuer, err := app.NewAuthService(testSecret, app.WithIssuer("elsewhere")).IssueToken("alice", domain.RoleUser)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "alice",
		"iss": "focusblock",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"iss": "focusblock",
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":        "not-a-jwt",
		"wrong secret":   other,
		"wrong issuer":   foreignIssuer,
		"alg none":       noneAlg,
		"missing expiry": noExpiry,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(context.Background(), tok)
			require.ErrorIs(t, err, app.ErrUnauthorized)
			assert.ErrorIs(t, err, app.ErrInvalidToken)
			assert.Equal(t, "Token is not valid", err.Error())
		})
	}
}

func TestValidateForwardAuth(t *testing.T) {
	svc := app.NewAuthService(testSecret, app.WithAdminGroup("admins"))

	id, err := svc.ValidateForwardAuth("alice", "users, admins")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: "alice", Role: domain.RoleAdmin}, id)

	id, err = svc.ValidateForwardAuth("bob", "users")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, id.Role)

	_, err = svc.ValidateForwardAuth("", "admins")
	assert.ErrorIs(t, err, app.ErrUnauthorized)
}

func TestValidateForwardAuth_NoAdminGroup(t *testing.T) {
	svc := app.NewAuthService(testSecret)

	id, err := svc.ValidateForwardAuth("alice", "admins")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, id.Role)
}
