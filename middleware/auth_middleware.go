package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/princinho/eventhub/apperrors"
	"github.com/princinho/eventhub/auth"
)

const identityKey = "identity"

// TokenVerifier is the part of the session issuer the guard needs.
type TokenVerifier interface {
	Verify(token string) (*auth.AccessClaims, error)
}

// AccessGuard rejects requests without a valid bearer token. Expired tokens
// get 401 so clients know to refresh, anything else gets 403.
func AccessGuard(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := Authenticate(c, v)
		if err != nil {
			abortWithAuthError(c, err)
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

// OptionalAuth attaches an identity when a token is sent and lets anonymous
// requests through. A bad token is still rejected.
func OptionalAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		id, err := Authenticate(c, v)
		if err != nil {
			abortWithAuthError(c, err)
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

// Authenticate extracts and verifies the bearer token of the request.
func Authenticate(c *gin.Context, v TokenVerifier) (auth.Identity, error) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return auth.Identity{}, auth.ErrMissingCredentials
	}

	tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenStr == "" {
		return auth.Identity{}, auth.ErrMissingCredentials
	}

	claims, err := v.Verify(tokenStr)
	if err != nil {
		return auth.Identity{}, err
	}
	return claims.Identity()
}

// IdentityFrom returns the identity attached by AccessGuard or OptionalAuth.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	if v, ok := c.Get(identityKey); ok {
		id, ok := v.(auth.Identity)
		return id, ok
	}
	return auth.IdentityFrom(c.Request.Context())
}

func setIdentity(c *gin.Context, id auth.Identity) {
	c.Set(identityKey, id)
	c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
}

func abortWithAuthError(c *gin.Context, err error) {
	var appErr *apperrors.Error
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		appErr = apperrors.Wrap(apperrors.Unauthorized, "No authentication credentials found", err)
	case errors.Is(err, auth.ErrExpired):
		appErr = apperrors.Wrap(apperrors.Expired, "token expired", err)
	default:
		appErr = apperrors.Wrap(apperrors.Unauthorized, "Not authorized", err)
	}
	_ = c.Error(appErr)
	c.Abort()
}
