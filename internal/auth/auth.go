package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

// ErrUnauthenticated is returned for absent, malformed or expired tokens and
// for tokens referencing inactive or unknown accounts.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden is returned when an authenticated user acts on a resource
// owned by someone else.
var ErrForbidden = errors.New("forbidden")

// RequireOwner rejects actions on resources the actor does not own.
func RequireOwner(ownerID, actorID int) error {
	if ownerID != actorID {
		return ErrForbidden
	}
	return nil
}

// Claims are the JWT claims issued by the accounts service.
type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// Identity is the immutable authenticated identity bound to a connection.
// It is resolved once at connect time; token expiry during a long-lived
// connection is not enforced.
type Identity struct {
	User models.User
}

// Summary returns the identity's user summary for event payloads.
func (i Identity) Summary() models.UserSummary {
	return i.User.Summary()
}

// Authenticator validates bearer tokens and resolves them to active accounts.
type Authenticator struct {
	secret []byte
	users  repositories.UserRepository
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(secret string, users repositories.UserRepository) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: users}
}

// Authenticate validates the token structure and expiry, extracts the user
// claim and checks the account is active. Any failure maps to
// ErrUnauthenticated so callers reject the connection before admission.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	if claims.UserID == 0 {
		return Identity{}, fmt.Errorf("%w: no user claim", ErrUnauthenticated)
	}

	user, err := a.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return Identity{}, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
		}
		return Identity{}, err
	}
	if !user.IsActive {
		return Identity{}, fmt.Errorf("%w: inactive user", ErrUnauthenticated)
	}

	return Identity{User: user}, nil
}

// IssueToken mints a token for the given user. Used by tests and local tooling;
// production tokens come from the accounts service with the same secret.
func (a *Authenticator) IssueToken(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the token query parameter for websocket clients that cannot
// set headers.
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
