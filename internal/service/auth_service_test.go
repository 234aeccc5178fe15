package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/models"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
)

func newAuthServiceForTest() *AuthService {
	return NewAuthService(zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Minute,
		Issuer:            "thesis-defense-api",
	})
}

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := newAuthServiceForTest()
	actor := models.Actor{UserID: "p-1", Role: models.RolePanelMember}

	token, expiresAt, err := svc.IssueToken(actor, "p1@example.edu")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "p-1", claims.UserID)
	assert.Equal(t, models.RolePanelMember, claims.Role)
	assert.Equal(t, "p1@example.edu", claims.Email)
}

func TestAuthServiceIssueRequiresIdentity(t *testing.T) {
	_, _, err := newAuthServiceForTest().IssueToken(models.Actor{UserID: "p-1"}, "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceRejectsForeignTokens(t *testing.T) {
	svc := newAuthServiceForTest()

	other := NewAuthService(zap.NewNop(), AuthConfig{AccessTokenSecret: "other", Issuer: "thesis-defense-api"})
	forged, _, err := other.IssueToken(models.Actor{UserID: "p-1", Role: models.RoleAdmin}, "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	wrongIssuer := NewAuthService(zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	token, _, err := wrongIssuer.IssueToken(models.Actor{UserID: "p-1", Role: models.RoleAdmin}, "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.ValidateToken("not-a-token")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRejectsExpiredAndAnonymousTokens(t *testing.T) {
	svc := newAuthServiceForTest()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "p-1",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "thesis-defense-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	anonymous := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "thesis-defense-api"},
	})
	signed, err = anonymous.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
