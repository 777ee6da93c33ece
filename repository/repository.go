// Package repository holds the persistence contracts used by the auth core and
// the controllers, with a MongoDB and an in-memory implementation of each.
package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/princinho/eventhub/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// CredentialStore persists user records.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	// Create inserts a new user and assigns its id.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// Update sets only the fields present in upd and returns the stored
	// document, so concurrent subscription changes are kept.
	Update(ctx context.Context, id bson.ObjectID, upd models.UserUpdate) (*models.User, error)
	CountByIDs(ctx context.Context, ids []bson.ObjectID) (int64, error)
	AddSubscription(ctx context.Context, userID, eventID bson.ObjectID) error
	RemoveSubscription(ctx context.Context, userID, eventID bson.ObjectID) error
}

// TokenLedger persists refresh tokens. Callers pass raw token values, the
// ledger only ever stores their hash.
type TokenLedger interface {
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	DeleteByUser(ctx context.Context, userID bson.ObjectID) error
	DeleteByToken(ctx context.Context, token string) error
	Insert(ctx context.Context, userID bson.ObjectID, token string, expiresAt time.Time) (*models.RefreshToken, error)
}

// EventStore persists events. Mutations return the updated document and
// ErrNotFound when no event matched.
type EventStore interface {
	Create(ctx context.Context, event *models.Event) (*models.Event, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter, skip, limit int64) ([]models.Event, int64, error)
	AddAdministrators(ctx context.Context, eventID bson.ObjectID, adminIDs []bson.ObjectID) (*models.Event, error)
	RemoveAdministrator(ctx context.Context, eventID, adminID bson.ObjectID) (*models.Event, error)
	// AddApplicant only matches a published event with a free seat that the
	// user has not joined yet.
	AddApplicant(ctx context.Context, eventID, userID bson.ObjectID) (*models.Event, error)
	RemoveApplicant(ctx context.Context, eventID, userID bson.ObjectID) (*models.Event, error)
}

// HashToken returns the hex SHA-256 of an opaque token value.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
