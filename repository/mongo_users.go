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
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoUserStore struct {
	col *mongo.Collection
}

func NewMongoUserStore(col *mongo.Collection) *MongoUserStore {
	return &MongoUserStore{col: col}
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoUserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoUserStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	if user.Subscriptions == nil {
		user.Subscriptions = []bson.ObjectID{}
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.col.InsertOne(ctx, user); err != nil {
		if utils.IsDuplicateKey(err) {
			return nil, fmt.Errorf("create user: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *MongoUserStore) Update(ctx context.Context, id bson.ObjectID, upd models.UserUpdate) (*models.User, error) {
	set := userUpdateDoc(upd)
	set["updatedAt"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, ErrNotFound
		case utils.IsDuplicateKey(err):
			return nil, fmt.Errorf("update user: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &user, nil
}

func userUpdateDoc(upd models.UserUpdate) bson.M {
	set := bson.M{}
	if upd.Username != nil {
		set["username"] = *upd.Username
	}
	if upd.FirstName != nil {
		set["firstName"] = *upd.FirstName
	}
	if upd.LastName != nil {
		set["lastName"] = *upd.LastName
	}
	if upd.Email != nil {
		set["email"] = *upd.Email
	}
	if upd.PasswordHash != nil {
		set["passwordHash"] = *upd.PasswordHash
	}
	if upd.VerifiedEmail != nil {
		set["verifiedEmail"] = *upd.VerifiedEmail
	}
	if upd.BirthDate != nil {
		set["birthDate"] = *upd.BirthDate
	}
	return set
}

func (s *MongoUserStore) CountByIDs(ctx context.Context, ids []bson.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.col.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *MongoUserStore) AddSubscription(ctx context.Context, userID, eventID bson.ObjectID) error {
	return s.updateSubscriptions(ctx, userID, bson.M{"$addToSet": bson.M{"subscriptions": eventID}})
}

func (s *MongoUserStore) RemoveSubscription(ctx context.Context, userID, eventID bson.ObjectID) error {
	return s.updateSubscriptions(ctx, userID, bson.M{"$pull": bson.M{"subscriptions": eventID}})
}

func (s *MongoUserStore) updateSubscriptions(ctx context.Context, userID bson.ObjectID, update bson.M) error {
	update["$set"] = bson.M{"updatedAt": time.Now().UTC()}
	res, err := s.col.UpdateByID(ctx, userID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
