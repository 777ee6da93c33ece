package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/princinho/eventhub/apperrors"
	"github.com/princinho/eventhub/auth"
	"github.com/princinho/eventhub/dto"
	"github.com/princinho/eventhub/middleware"
	"github.com/princinho/eventhub/models"
	"github.com/princinho/eventhub/repository"
	"github.com/princinho/eventhub/utils"
	"go.uber.org/zap"
)

type UserController struct {
	*Deps
}

func NewUserController(d *Deps) *UserController {
	return &UserController{Deps: d}
}

// GET /api/user/:userId
func (uc *UserController) GetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := parseObjectID(c.Param("userId"), "user")
		if err != nil {
			fail(c, err)
			return
		}
		user, err := uc.Users.FindByID(c.Request.Context(), userID)
		if err != nil {
			fail(c, storeError(err, "user"))
			return
		}

		if id, ok := middleware.IdentityFrom(c); ok && id.UserID == user.ID {
			c.JSON(http.StatusOK, dto.OwnerUser(user))
			return
		}
		c.JSON(http.StatusOK, dto.PublicUser(user))
	}
}

// PUT /api/user/:userId
func (uc *UserController) UpdateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := uc.loadOwner(c)
		if err != nil {
			fail(c, err)
			return
		}

		var body dto.UpdateUserDTO
		if err := bindJSON(c, &body); err != nil {
			fail(c, err)
			return
		}
		var upd models.UserUpdate
		if body.FirstName != nil {
			firstName := strings.TrimSpace(*body.FirstName)
			upd.FirstName = &firstName
		}
		if body.LastName != nil {
			lastName := strings.TrimSpace(*body.LastName)
			upd.LastName = &lastName
		}
		if body.BirthDate != nil {
			birthDate, _ := time.Parse("2006-01-02", *body.BirthDate)
			upd.BirthDate = &birthDate
		}
		if upd.IsEmpty() {
			fail(c, apperrors.BadRequestf("no updates provided"))
			return
		}

		saved, err := uc.Users.Update(c.Request.Context(), user.ID, upd)
		if err != nil {
			fail(c, storeError(err, "user"))
			return
		}
		c.JSON(http.StatusOK, dto.OwnerUser(saved))
	}
}

// POST /api/user/:userId/email
func (uc *UserController) ChangeEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user, err := uc.loadOwner(c)
		if err != nil {
			fail(c, err)
			return
		}

		var body dto.ChangeEmailDTO
		if err := bindJSON(c, &body); err != nil {
			fail(c, err)
			return
		}
		if err := utils.CheckPassword(user.PasswordHash, body.Password); err != nil {
			fail(c, apperrors.Field("password", "password is incorrect"))
			return
		}

		newEmail := strings.ToLower(strings.TrimSpace(body.NewEmail))
		if newEmail == user.Email {
			fail(c, apperrors.Field("newEmail", "newEmail must differ from the current email"))
			return
		}
		if _, err := uc.Users.FindByEmail(ctx, newEmail); err == nil {
			fail(c, apperrors.Field("newEmail", "email already in use"))
			return
		} else if !errors.Is(err, repository.ErrNotFound) {
			fail(c, apperrors.InternalWrap(err))
			return
		}

		verified := false
		saved, err := uc.Users.Update(ctx, user.ID, models.UserUpdate{Email: &newEmail, VerifiedEmail: &verified})
		if err != nil {
			fail(c, storeError(err, "email"))
			return
		}

		uc.sendConfirmation(c, saved)
		c.JSON(http.StatusOK, dto.OwnerUser(saved))
	}
}

// POST /api/user/:userId/username
func (uc *UserController) ChangeUsername() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user, err := uc.loadOwner(c)
		if err != nil {
			fail(c, err)
			return
		}

		var body dto.ChangeUsernameDTO
		if err := bindJSON(c, &body); err != nil {
			fail(c, err)
			return
		}
		if err := utils.CheckPassword(user.PasswordHash, body.Password); err != nil {
			fail(c, apperrors.Field("password", "password is incorrect"))
			return
		}

		newUsername := strings.TrimSpace(body.NewUsername)
		if newUsername == user.Username {
			fail(c, apperrors.Field("newUsername", "newUsername must differ from the current username"))
			return
		}
		if _, err := uc.Users.FindByUsername(ctx, newUsername); err == nil {
			fail(c, apperrors.Field("newUsername", "username already in use"))
			return
		} else if !errors.Is(err, repository.ErrNotFound) {
			fail(c, apperrors.InternalWrap(err))
			return
		}

		saved, err := uc.Users.Update(ctx, user.ID, models.UserUpdate{Username: &newUsername})
		if err != nil {
			fail(c, storeError(err, "username"))
			return
		}
		c.JSON(http.StatusOK, dto.OwnerUser(saved))
	}
}

// POST /api/user/me/password
func (uc *UserController) ChangeMyPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, err := currentIdentity(c)
		if err != nil {
			fail(c, err)
			return
		}

		var body dto.ChangeMyPasswordDTO
		if err := bindJSON(c, &body); err != nil {
			fail(c, err)
			return
		}
		if err := checkPasswordLength("newPassword", body.NewPassword, uc.Config.Auth.PasswordMinLength); err != nil {
			fail(c, err)
			return
		}

		user, err := uc.Users.FindByID(ctx, id.UserID)
		if err != nil {
			fail(c, storeError(err, "user"))
			return
		}
		if err := utils.CheckPassword(user.PasswordHash, body.CurrentPassword); err != nil {
			fail(c, apperrors.Field("currentPassword", "current password is incorrect"))
			return
		}

		if err := uc.setPassword(c, user, body.NewPassword); err != nil {
			fail(c, err)
			return
		}
		utils.ClearRefreshCookie(c, uc.Config.Cookie)
		c.Status(http.StatusNoContent)
	}
}

// POST /api/user/verification-email
func (uc *UserController) SendVerificationEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := currentIdentity(c)
		if err != nil {
			fail(c, err)
			return
		}
		user, err := uc.Users.FindByID(c.Request.Context(), id.UserID)
		if err != nil {
			fail(c, storeError(err, "user"))
			return
		}
		if user.VerifiedEmail {
			fail(c, apperrors.BadRequestf("email already verified"))
			return
		}

		uc.sendConfirmation(c, user)
		c.JSON(http.StatusOK, gin.H{})
	}
}

// GET /api/user/email-confirmation?token=
func (uc *UserController) ConfirmEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := uc.Actions.Redeem(c.Request.Context(), c.Query("token"), auth.PurposeEmailConfirmation)
		if err != nil {
			fail(c, uc.redeemError(auth.PurposeEmailConfirmation, err))
			return
		}
		// the fingerprint is the address itself, so the token stays valid
		// until the email changes
		if user.VerifiedEmail {
			fail(c, apperrors.BadRequestf("email already verified"))
			return
		}

		verified := true
		if _, err := uc.Users.Update(c.Request.Context(), user.ID, models.UserUpdate{VerifiedEmail: &verified}); err != nil {
			fail(c, storeError(err, "user"))
			return
		}
		uc.countActionToken(auth.PurposeEmailConfirmation, "redeemed")
		c.JSON(http.StatusOK, gin.H{"message": "email verified"})
	}
}

// POST /api/user/password-reset/request
func (uc *UserController) RequestPasswordReset() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var body dto.PasswordResetRequestDTO
		if err := bindJSON(c, &body); err != nil {
			fail(c, err)
			return
		}

		user, err := uc.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(body.Email)))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusOK, gin.H{})
				return
			}
			fail(c, apperrors.InternalWrap(err))
			return
		}
		if uc.Config.Auth.ResetRequiresVerifiedEmail && !user.VerifiedEmail {
			fail(c, apperrors.BadRequestf("email not verified"))
			return
		}

		token, err := uc.Actions.Issue(user, auth.PurposePasswordReset, uc.Config.Auth.PasswordResetTTL)
		if err != nil {
			fail(c, apperrors.InternalWrap(err))
			return
		}
		uc.countActionToken(auth.PurposePasswordReset, "issued")
		uc.Mailer.SendPasswordReset(ctx, user, token)
		c.JSON(http.StatusOK, gin.H{})
	}
}

// GET /api/user/password-reset/validate?token=
func (uc *UserController) ValidatePasswordReset() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uc.Actions.Redeem(c.Request.Context(), c.Query("token"), auth.PurposePasswordReset); err != nil {
			fail(c, uc.redeemError(auth.PurposePasswordReset, err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "valid token"})
	}
}

// POST /api/user/password-reset?token=
func (uc *UserController) ResetPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.PasswordResetDTO
		if err := bindJSON(c, &body); err != nil {
			fail(c, err)
			return
		}
		if err := checkPasswordLength("newPassword", body.NewPassword, uc.Config.Auth.PasswordMinLength); err != nil {
			fail(c, err)
			return
		}

		user, err := uc.Actions.Redeem(c.Request.Context(), c.Query("token"), auth.PurposePasswordReset)
		if err != nil {
			fail(c, uc.redeemError(auth.PurposePasswordReset, err))
			return
		}

		if err := uc.setPassword(c, user, body.NewPassword); err != nil {
			fail(c, err)
			return
		}
		uc.countActionToken(auth.PurposePasswordReset, "redeemed")
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	}
}

// setPassword stores the new hash, which also burns outstanding reset
// tokens, and drops the user's refresh token.
func (uc *UserController) setPassword(c *gin.Context, user *models.User, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return apperrors.InternalWrap(err)
	}
	if _, err := uc.Users.Update(c.Request.Context(), user.ID, models.UserUpdate{PasswordHash: &hash}); err != nil {
		return storeError(err, "user")
	}
	if err := uc.Sessions.RevokeUser(c.Request.Context(), user.ID); err != nil {
		uc.Log.Warn("failed to revoke refresh token after password change",
			zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}
	return nil
}

// loadOwner resolves :userId and checks it belongs to the caller.
func (uc *UserController) loadOwner(c *gin.Context) (*models.User, error) {
	id, err := currentIdentity(c)
	if err != nil {
		return nil, err
	}
	userID, err := parseObjectID(c.Param("userId"), "user")
	if err != nil {
		return nil, err
	}
	if userID != id.UserID {
		return nil, apperrors.New(apperrors.Unauthorized, "you can only modify your own account")
	}
	user, err := uc.Users.FindByID(c.Request.Context(), userID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}
