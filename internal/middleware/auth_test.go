package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vietTNT/DoveRx-backend/internal/auth"
	"github.com/vietTNT/DoveRx-backend/internal/middleware"
	"github.com/vietTNT/DoveRx-backend/internal/mocks"
	"github.com/vietTNT/DoveRx-backend/internal/models"
)

func setupRouter(authenticator *auth.Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.AuthMiddleware(authenticator))
	r.GET("/me", func(c *gin.Context) {
		identity, ok := middleware.IdentityFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "identity missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": identity.User.ID})
	})
	return r
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	authenticator := auth.NewAuthenticator("secret", new(mocks.UserRepositoryMock))
	router := setupRouter(authenticator)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareInvalidToken(t *testing.T) {
	authenticator := auth.NewAuthenticator("secret", new(mocks.UserRepositoryMock))
	router := setupRouter(authenticator)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareUserStoreFailure(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	authenticator := auth.NewAuthenticator("secret", users)
	router := setupRouter(authenticator)

	users.On("GetUser", mock.Anything, 7).
		Return(models.User{}, assert.AnError).Once()

	token, err := authenticator.IssueToken(auth.Claims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	users.AssertExpectations(t)
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	authenticator := auth.NewAuthenticator("secret", users)
	router := setupRouter(authenticator)

	users.On("GetUser", mock.Anything, 7).
		Return(models.User{ID: 7, IsActive: true}, nil).Once()

	token, err := authenticator.IssueToken(auth.Claims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}
