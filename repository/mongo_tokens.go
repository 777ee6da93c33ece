package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/princinho/eventhub/models"
	"github.com/princinho/eventhub/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoTokenLedger relies on the unique userId index to keep one live token
// per user and on the expiresAt TTL index to purge stale entries.
type MongoTokenLedger struct {
	col *mongo.Collection
}

func NewMongoTokenLedger(col *mongo.Collection) *MongoTokenLedger {
	return &MongoTokenLedger{col: col}
}

func (l *MongoTokenLedger) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := l.col.FindOne(ctx, bson.M{"tokenHash": HashToken(token)}).Decode(&rt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rt, nil
}

func (l *MongoTokenLedger) DeleteByUser(ctx context.Context, userID bson.ObjectID) error {
	_, err := l.col.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}

func (l *MongoTokenLedger) DeleteByToken(ctx context.Context, token string) error {
	_, err := l.col.DeleteOne(ctx, bson.M{"tokenHash": HashToken(token)})
	return err
}

func (l *MongoTokenLedger) Insert(ctx context.Context, userID bson.ObjectID, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	rt := models.RefreshToken{
		ID:        bson.NewObjectID(),
		UserID:    userID,
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := l.col.InsertOne(ctx, rt); err != nil {
		if utils.IsDuplicateKey(err) {
			return nil, fmt.Errorf("insert refresh token: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert refresh token: %w", err)
	}
	return &rt, nil
}
