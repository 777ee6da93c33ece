package dto

import "time"

type RegisterDTO struct {
	Username        string `json:"username" binding:"required,min=5,max=15,username"`
	FirstName       string `json:"firstName" binding:"required,min=2,max=20"`
	LastName        string `json:"lastName" binding:"required,min=2,max=20"`
	BirthDate       string `json:"birthDate" binding:"required,datetime=2006-01-02"`
	Role            *int   `json:"role" binding:"required,oneof=0 1"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

// LoginDTO carries both identifiers; the configured login method decides
// which one is read.
type LoginDTO struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken       string    `json:"access_token"`
	AccessTokenExpiry time.Time `json:"access_token_expiry"`
}
