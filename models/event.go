package models

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Event struct {
	ID             bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name           string          `bson:"name" json:"name"`
	Banner         string          `bson:"banner" json:"banner"`
	BannerObject   string          `bson:"bannerObject,omitempty" json:"-"`
	Creator        bson.ObjectID   `bson:"creator" json:"creator"`
	Administrators []bson.ObjectID `bson:"administrators" json:"administrators"`
	Category       string          `bson:"category" json:"category"`
	Tags           []string        `bson:"tags" json:"tags"`
	Date           time.Time       `bson:"date" json:"date"`
	Place          string          `bson:"place" json:"place"`
	Description    string          `bson:"description" json:"description"`
	Applicants     []bson.ObjectID `bson:"applicants" json:"applicants"`
	Limit          int             `bson:"limit" json:"limit"`
	IsPublished    bool            `bson:"isPublished" json:"isPublished"`
	IsFree         bool            `bson:"isFree" json:"isFree"`
	Price          *float64        `bson:"price,omitempty" json:"price,omitempty"`
	CreatedAt      time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// CanManage reports whether userID is the creator or one of the administrators.
func (e *Event) CanManage(userID bson.ObjectID) bool {
	return e.Creator == userID || slices.Contains(e.Administrators, userID)
}

func (e *Event) HasApplicant(userID bson.ObjectID) bool {
	return slices.Contains(e.Applicants, userID)
}

func (e *Event) Full() bool {
	return len(e.Applicants) >= e.Limit
}

// EventFilter narrows event listings. Zero values are ignored.
type EventFilter struct {
	Name          string
	Creator       *bson.ObjectID
	Category      string
	Place         string
	Date          *time.Time
	IsFree        *bool
	Price         *float64
	PublishedOnly bool
}
