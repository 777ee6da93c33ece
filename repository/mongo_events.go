package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/princinho/eventhub/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoEventStore struct {
	col *mongo.Collection
}

func NewMongoEventStore(col *mongo.Collection) *MongoEventStore {
	return &MongoEventStore{col: col}
}

func (s *MongoEventStore) Create(ctx context.Context, event *models.Event) (*models.Event, error) {
	now := time.Now().UTC()
	event.ID = bson.NewObjectID()
	event.CreatedAt = now
	event.UpdatedAt = now
	normalizeEvent(event)

	if _, err := s.col.InsertOne(ctx, event); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (s *MongoEventStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.Event, error) {
	var event models.Event
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (s *MongoEventStore) List(ctx context.Context, filter models.EventFilter, skip, limit int64) ([]models.Event, int64, error) {
	doc := eventFilterDoc(filter)

	total, err := s.col.CountDocuments(ctx, doc)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.col.Find(ctx, doc, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Event, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *MongoEventStore) AddAdministrators(ctx context.Context, eventID bson.ObjectID, adminIDs []bson.ObjectID) (*models.Event, error) {
	return s.findAndUpdate(ctx, bson.M{"_id": eventID}, bson.M{
		"$addToSet": bson.M{"administrators": bson.M{"$each": adminIDs}},
	})
}

func (s *MongoEventStore) RemoveAdministrator(ctx context.Context, eventID, adminID bson.ObjectID) (*models.Event, error) {
	return s.findAndUpdate(ctx, bson.M{"_id": eventID}, bson.M{
		"$pull": bson.M{"administrators": adminID},
	})
}

func (s *MongoEventStore) AddApplicant(ctx context.Context, eventID, userID bson.ObjectID) (*models.Event, error) {
	// single-document update, so the seat check and the push are atomic
	filter := bson.M{
		"_id":         eventID,
		"isPublished": true,
		"applicants":  bson.M{"$ne": userID},
		"$expr": bson.M{
			"$lt": bson.A{bson.M{"$size": "$applicants"}, "$limit"},
		},
	}
	return s.findAndUpdate(ctx, filter, bson.M{
		"$addToSet": bson.M{"applicants": userID},
	})
}

func (s *MongoEventStore) RemoveApplicant(ctx context.Context, eventID, userID bson.ObjectID) (*models.Event, error) {
	return s.findAndUpdate(ctx, bson.M{"_id": eventID, "applicants": userID}, bson.M{
		"$pull": bson.M{"applicants": userID},
	})
}

func (s *MongoEventStore) findAndUpdate(ctx context.Context, filter, update bson.M) (*models.Event, error) {
	update["$set"] = bson.M{"updatedAt": time.Now().UTC()}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var event models.Event
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&event); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func eventFilterDoc(f models.EventFilter) bson.M {
	doc := bson.M{}
	if f.PublishedOnly {
		doc["isPublished"] = true
	}
	if f.Name != "" {
		doc["name"] = bson.M{"$regex": regexp.QuoteMeta(f.Name), "$options": "i"}
	}
	if f.Creator != nil {
		doc["creator"] = *f.Creator
	}
	if f.Category != "" {
		doc["category"] = f.Category
	}
	if f.Place != "" {
		doc["place"] = f.Place
	}
	if f.Date != nil {
		doc["date"] = f.Date.UTC()
	}
	if f.IsFree != nil {
		doc["isFree"] = *f.IsFree
	}
	if f.Price != nil {
		doc["price"] = *f.Price
	}
	return doc
}

func normalizeEvent(e *models.Event) {
	if e.Administrators == nil {
		e.Administrators = []bson.ObjectID{}
	}
	if e.Applicants == nil {
		e.Applicants = []bson.ObjectID{}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
}
