package dto

import (
	"time"

	"github.com/princinho/eventhub/models"
)

// CreateEventDTO is sent as the "data" field of the multipart form, next to
// the "banner" file.
type CreateEventDTO struct {
	Name        string    `json:"name" binding:"required,min=3,max=100"`
	Category    string    `json:"category" binding:"required"`
	Tags        []string  `json:"tags" binding:"max=10"`
	Date        time.Time `json:"date" binding:"required"`
	Place       string    `json:"place" binding:"required"`
	Description string    `json:"description" binding:"max=5000"`
	Limit       int       `json:"limit" binding:"required,gt=0"`
	IsPublished bool      `json:"isPublished"`
	IsFree      bool      `json:"isFree"`
	Price       *float64  `json:"price" binding:"omitempty,gte=0"`
}

type AddAdministratorsDTO struct {
	Administrators []string `json:"administrators" binding:"required,min=1,dive,objectid"`
}

// Person is how users are embedded in event payloads.
type Person struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

func NewPerson(u *models.User) Person {
	return Person{ID: u.ID.Hex(), Username: u.Username, FullName: u.FirstName + " " + u.LastName}
}

type EventSummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Banner          string    `json:"banner"`
	Category        string    `json:"category"`
	Tags            []string  `json:"tags"`
	Date            time.Time `json:"date"`
	Place           string    `json:"place"`
	Limit           int       `json:"limit"`
	ApplicantsCount int       `json:"applicantsCount"`
	IsFree          bool      `json:"isFree"`
	Price           *float64  `json:"price,omitempty"`
}

func NewEventSummary(e *models.Event) EventSummary {
	return EventSummary{
		ID:              e.ID.Hex(),
		Name:            e.Name,
		Banner:          e.Banner,
		Category:        e.Category,
		Tags:            e.Tags,
		Date:            e.Date,
		Place:           e.Place,
		Limit:           e.Limit,
		ApplicantsCount: len(e.Applicants),
		IsFree:          e.IsFree,
		Price:           e.Price,
	}
}

type EventDetail struct {
	EventSummary
	Description    string   `json:"description"`
	Creator        *Person  `json:"creator"`
	Administrators []Person `json:"administrators"`
	IsPublished    bool     `json:"isPublished"`
	IsSubscribed   bool     `json:"isSubscribed"`
	// Applicants is only listed for people managing the event.
	Applicants []string `json:"applicants,omitempty"`
}

type EventPage struct {
	Count  int64          `json:"count"`
	Next   *string        `json:"next"`
	Result []EventSummary `json:"result"`
}
