package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role int

const (
	RoleClient  Role = 0
	RoleCreator Role = 1
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleCreator
}

func (r Role) String() string {
	if r == RoleCreator {
		return "CREATOR"
	}
	return "CLIENT"
}

type User struct {
	ID            bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username      string          `bson:"username" json:"username"`
	FirstName     string          `bson:"firstName" json:"firstName"`
	LastName      string          `bson:"lastName" json:"lastName"`
	Email         string          `bson:"email" json:"email"`
	PasswordHash  string          `bson:"passwordHash" json:"-"` // never expose
	Role          Role            `bson:"role" json:"role"`
	VerifiedEmail bool            `bson:"verifiedEmail" json:"verifiedEmail"`
	BirthDate     time.Time       `bson:"birthDate" json:"birthDate"`
	Subscriptions []bson.ObjectID `bson:"subscriptions" json:"subscriptions"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// UserUpdate carries the profile fields a request changed. Nil fields are
// left as stored.
type UserUpdate struct {
	Username      *string
	FirstName     *string
	LastName      *string
	Email         *string
	PasswordHash  *string
	VerifiedEmail *bool
	BirthDate     *time.Time
}

func (u UserUpdate) IsEmpty() bool {
	return u.Username == nil && u.FirstName == nil && u.LastName == nil && u.Email == nil &&
		u.PasswordHash == nil && u.VerifiedEmail == nil && u.BirthDate == nil
}

// Apply copies the set fields onto user.
func (u UserUpdate) Apply(user *User) {
	if u.Username != nil {
		user.Username = *u.Username
	}
	if u.FirstName != nil {
		user.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		user.LastName = *u.LastName
	}
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.PasswordHash != nil {
		user.PasswordHash = *u.PasswordHash
	}
	if u.VerifiedEmail != nil {
		user.VerifiedEmail = *u.VerifiedEmail
	}
	if u.BirthDate != nil {
		user.BirthDate = *u.BirthDate
	}
}

// RefreshToken is a ledger entry. Only the SHA-256 of the opaque value is stored.
type RefreshToken struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    bson.ObjectID `bson:"userId"`
	TokenHash string        `bson:"tokenHash"`
	ExpiresAt time.Time     `bson:"expiresAt"`
	CreatedAt time.Time     `bson:"createdAt"`
}

func (rt *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(rt.ExpiresAt)
}
