package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/princinho/eventhub/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type AccessClaims struct {
	UserID        string      `json:"user_id"`
	Username      string      `json:"username"`
	FirstName     string      `json:"first_name"`
	LastName      string      `json:"last_name"`
	Role          models.Role `json:"role"`
	VerifiedEmail bool        `json:"verified_email"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller as seen by handlers.
type Identity struct {
	UserID        bson.ObjectID `json:"id"`
	Username      string        `json:"username"`
	FirstName     string        `json:"firstName"`
	LastName      string        `json:"lastName"`
	Role          models.Role   `json:"role"`
	VerifiedEmail bool          `json:"verifiedEmail"`
}

func (i Identity) IsCreator() bool {
	return i.Role == models.RoleCreator
}

func (c *AccessClaims) Identity() (Identity, error) {
	id, err := bson.ObjectIDFromHex(c.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return Identity{
		UserID:        id,
		Username:      c.Username,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Role:          c.Role,
		VerifiedEmail: c.VerifiedEmail,
	}, nil
}

type Purpose string

const (
	PurposePasswordReset     Purpose = "password_reset"
	PurposeEmailConfirmation Purpose = "email_confirmation"
)

func (p Purpose) Valid() bool {
	return p == PurposePasswordReset || p == PurposeEmailConfirmation
}

type ActionClaims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
