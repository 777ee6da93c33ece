package dto

type ChangeMyPasswordDTO struct {
	CurrentPassword    string `json:"currentPassword" binding:"required"`
	NewPassword        string `json:"newPassword" binding:"required"`
	ConfirmNewPassword string `json:"confirmNewPassword" binding:"required,eqfield=NewPassword"`
}

type PasswordResetRequestDTO struct {
	Email string `json:"email" binding:"required,email"`
}

type PasswordResetDTO struct {
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=NewPassword"`
}
