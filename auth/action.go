package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/princinho/eventhub/models"
	"github.com/princinho/eventhub/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ActionTokenIssuer signs single-use tokens for password reset and email
// confirmation. The signing key is the server secret plus a fingerprint of
// the user state the action changes, so performing the action burns the
// token. Nothing is persisted.
type ActionTokenIssuer struct {
	users  repository.CredentialStore
	secret string
	now    func() time.Time
}

func NewActionTokenIssuer(users repository.CredentialStore, secret string) *ActionTokenIssuer {
	return &ActionTokenIssuer{users: users, secret: secret, now: time.Now}
}

func (a *ActionTokenIssuer) WithClock(now func() time.Time) *ActionTokenIssuer {
	a.now = now
	return a
}

func (a *ActionTokenIssuer) Issue(user *models.User, purpose Purpose, ttl time.Duration) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}
	now := a.now()
	claims := ActionClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signingKey(user, purpose))
}

// Redeem returns the user the token was issued for. The unverified payload is
// only used to pick the user and fingerprint; nothing is trusted until the
// signature checks out. Persisting the state change is up to the caller.
func (a *ActionTokenIssuer) Redeem(ctx context.Context, tokenStr string, expected Purpose) (*models.User, error) {
	claimed := &ActionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claimed); err != nil {
		return nil, ErrInvalidToken
	}
	if !claimed.Purpose.Valid() {
		return nil, ErrInvalidToken
	}
	userID, err := bson.ObjectIDFromHex(claimed.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	verified := &ActionClaims{}
	_, err = jwt.ParseWithClaims(tokenStr, verified, func(t *jwt.Token) (any, error) {
		return a.signingKey(user, claimed.Purpose), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidToken
	}

	if verified.Purpose != expected {
		return nil, ErrPurposeMismatch
	}
	return user, nil
}

func (a *ActionTokenIssuer) signingKey(user *models.User, purpose Purpose) []byte {
	return []byte(a.secret + fingerprint(user, purpose))
}

func fingerprint(user *models.User, purpose Purpose) string {
	if purpose == PurposeEmailConfirmation {
		return user.Email
	}
	return user.PasswordHash
}
