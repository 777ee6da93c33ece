package dto

import (
	"github.com/princinho/eventhub/models"
)

type UpdateUserDTO struct {
	FirstName *string `json:"firstName" binding:"omitempty,min=2,max=20"`
	LastName  *string `json:"lastName" binding:"omitempty,min=2,max=20"`
	BirthDate *string `json:"birthDate" binding:"omitempty,datetime=2006-01-02"`
}

type ChangeEmailDTO struct {
	NewEmail string `json:"newEmail" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangeUsernameDTO struct {
	NewUsername string `json:"newUsername" binding:"required,min=5,max=15,username"`
	Password    string `json:"password" binding:"required"`
}

// UserResponse is the public view of a user. Private fields are only filled
// for the account owner.
type UserResponse struct {
	ID            string       `json:"id"`
	Username      string       `json:"username"`
	FirstName     string       `json:"firstName"`
	LastName      string       `json:"lastName"`
	Email         string       `json:"email,omitempty"`
	Role          *models.Role `json:"role,omitempty"`
	VerifiedEmail *bool        `json:"verifiedEmail,omitempty"`
	BirthDate     string       `json:"birthDate,omitempty"`
	Subscriptions []string     `json:"subscriptions,omitempty"`
}

func PublicUser(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID.Hex(),
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func OwnerUser(u *models.User) UserResponse {
	resp := PublicUser(u)
	role := u.Role
	verified := u.VerifiedEmail
	resp.Email = u.Email
	resp.Role = &role
	resp.VerifiedEmail = &verified
	if !u.BirthDate.IsZero() {
		resp.BirthDate = u.BirthDate.Format("2006-01-02")
	}
	resp.Subscriptions = make([]string, 0, len(u.Subscriptions))
	for _, id := range u.Subscriptions {
		resp.Subscriptions = append(resp.Subscriptions, id.Hex())
	}
	return resp
}
