package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenmart/api/internal/config"
	"greenmart/api/internal/models"
	"greenmart/api/internal/repository"
	"greenmart/api/internal/security"
)

func newTestIssuer() *security.TokenIssuer {
	return security.NewTokenIssuer(config.SecurityConfig{
		JWTAccessSecret:  "access-secret",
		JWTRefreshSecret: "refresh-secret",
		JWTAccessTTL:     15 * time.Minute,
		JWTRefreshTTL:    time.Hour,
	})
}

type stubUserLoader struct {
	user models.User
	err  error
}

func (s stubUserLoader) GetByID(_ context.Context, _ uuid.UUID) (models.User, error) {
	return s.user, s.err
}

func runAuth(t *testing.T, issuer *security.TokenIssuer, users UserLoader, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/protected", Auth(issuer, users), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": user.ID.String()})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestAuth_MissingHeader(t *testing.T) {
	rr := runAuth(t, newTestIssuer(), stubUserLoader{}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_BadToken(t *testing.T) {
	rr := runAuth(t, newTestIssuer(), stubUserLoader{}, "Bearer not-a-real-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_RefreshTokenRejectedOnAccessGuard(t *testing.T) {
	issuer := newTestIssuer()
	userID := uuid.New()
	refresh, _, err := issuer.CreateRefreshToken(userID.String())
	require.NoError(t, err)

	rr := runAuth(t, issuer, stubUserLoader{}, "Bearer "+refresh)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_UnknownUser(t *testing.T) {
	issuer := newTestIssuer()
	access, err := issuer.CreateAccessToken(uuid.New().String())
	require.NoError(t, err)

	rr := runAuth(t, issuer, stubUserLoader{err: repository.ErrUserNotFound}, "Bearer "+access)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_LockedUser(t *testing.T) {
	issuer := newTestIssuer()
	userID := uuid.New()
	access, err := issuer.CreateAccessToken(userID.String())
	require.NoError(t, err)

	loader := stubUserLoader{user: models.User{ID: userID, IsActivated: true, IsLocked: true}}
	rr := runAuth(t, issuer, loader, "Bearer "+access)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAuth_HappyPath(t *testing.T) {
	issuer := newTestIssuer()
	userID := uuid.New()
	access, err := issuer.CreateAccessToken(userID.String())
	require.NoError(t, err)

	loader := stubUserLoader{user: models.User{ID: userID, IsActivated: true}}
	rr := runAuth(t, issuer, loader, "Bearer "+access)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), userID.String())
}
