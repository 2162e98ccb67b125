package auth_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vietTNT/DoveRx-backend/internal/auth"
	"github.com/vietTNT/DoveRx-backend/internal/mocks"
	"github.com/vietTNT/DoveRx-backend/internal/models"
)

const testSecret = "test-secret"

func issuedToken(t *testing.T, a *auth.Authenticator, userID int, expiry time.Duration) string {
	t.Helper()
	token, err := a.IssueToken(auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
	})
	require.NoError(t, err)
	return token
}

func TestAuthenticateValidToken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	a := auth.NewAuthenticator(testSecret, users)
	users.On("GetUser", mock.Anything, 7).
		Return(models.User{ID: 7, Username: "mai", IsActive: true}, nil).Once()

	token := issuedToken(t, a, 7, time.Hour)
	identity, err := a.Authenticate(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, 7, identity.User.ID)
	assert.Equal(t, "mai", identity.User.Username)
	users.AssertExpectations(t)
}

func TestAuthenticateEmptyToken(t *testing.T) {
	a := auth.NewAuthenticator(testSecret, new(mocks.UserRepositoryMock))

	_, err := a.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	a := auth.NewAuthenticator(testSecret, new(mocks.UserRepositoryMock))
	token := issuedToken(t, a, 7, -time.Minute)

	_, err := a.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	other := auth.NewAuthenticator("other-secret", new(mocks.UserRepositoryMock))
	token := issuedToken(t, other, 7, time.Hour)

	a := auth.NewAuthenticator(testSecret, new(mocks.UserRepositoryMock))
	_, err := a.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	a := auth.NewAuthenticator(testSecret, users)
	users.On("GetUser", mock.Anything, 7).
		Return(models.User{ID: 7, IsActive: false}, nil).Once()

	token := issuedToken(t, a, 7, time.Hour)
	_, err := a.Authenticate(context.Background(), token)

	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	users.AssertExpectations(t)
}

func TestTokenFromRequestHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/feed", nil)
	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", auth.TokenFromRequest(r))
}

func TestTokenFromRequestQueryFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/feed?token=xyz", nil)
	assert.Equal(t, "xyz", auth.TokenFromRequest(r))
}

func TestTokenFromRequestHeaderWins(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/feed?token=query", nil)
	r.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "header", auth.TokenFromRequest(r))
}

func TestRequireOwner(t *testing.T) {
	assert.NoError(t, auth.RequireOwner(3, 3))
	assert.ErrorIs(t, auth.RequireOwner(3, 4), auth.ErrForbidden)
}
