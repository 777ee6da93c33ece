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
	"github.com/princinho/eventhub/models"
	"github.com/princinho/eventhub/repository"
	"github.com/princinho/eventhub/utils"
	"go.uber.org/zap"
)

type AuthController struct {
	*Deps
}

func NewAuthController(d *Deps) *AuthController {
	return &AuthController{Deps: d}
}

// POST /api/auth/register
func (ac *AuthController) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var body dto.RegisterDTO
		if err := bindJSON(c, &body); err != nil {
			fail(c, err)
			return
		}
		if err := checkPasswordLength("password", body.Password, ac.Config.Auth.PasswordMinLength); err != nil {
			fail(c, err)
			return
		}

		username := strings.TrimSpace(body.Username)
		email := strings.ToLower(strings.TrimSpace(body.Email))

		taken := map[string][]string{}
		if _, err := ac.Users.FindByUsername(ctx, username); err == nil {
			taken["username"] = []string{"username already in use"}
		} else if !errors.Is(err, repository.ErrNotFound) {
			fail(c, apperrors.InternalWrap(err))
			return
		}
		if _, err := ac.Users.FindByEmail(ctx, email); err == nil {
			taken["email"] = []string{"email already in use"}
		} else if !errors.Is(err, repository.ErrNotFound) {
			fail(c, apperrors.InternalWrap(err))
			return
		}
		if len(taken) > 0 {
			fail(c, apperrors.Validation(taken))
			return
		}

		birthDate, _ := time.Parse("2006-01-02", body.BirthDate)
		hash, err := utils.HashPassword(body.Password)
		if err != nil {
			fail(c, apperrors.InternalWrap(err))
			return
		}

		user, err := ac.Users.Create(ctx, &models.User{
			Username:     username,
			FirstName:    strings.TrimSpace(body.FirstName),
			LastName:     strings.TrimSpace(body.LastName),
			Email:        email,
			PasswordHash: hash,
			Role:         models.Role(*body.Role),
			BirthDate:    birthDate,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				fail(c, apperrors.Wrap(apperrors.Conflict, "username or email already in use", err))
				return
			}
			fail(c, apperrors.InternalWrap(err))
			return
		}

		ac.sendConfirmation(c, user)
		c.JSON(http.StatusCreated, dto.OwnerUser(user))
	}
}

// POST /api/auth/login
func (ac *AuthController) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.LoginDTO
		if err := bindJSON(c, &body); err != nil {
			fail(c, err)
			return
		}

		field := ac.LoginStrategy.Field()
		identifier := body.Email
		if field == "username" {
			identifier = body.Username
		}
		if strings.TrimSpace(identifier) == "" {
			fail(c, apperrors.Field(field, field+" is a required field"))
			return
		}

		user, err := ac.LoginStrategy.Authenticate(c.Request.Context(), identifier, body.Password)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				ac.countAuthFailure("bad_credentials")
				fail(c, apperrors.Wrap(apperrors.Unauthenticated, "wrong username or password", err))
				return
			}
			fail(c, apperrors.InternalWrap(err))
			return
		}

		ac.respondWithSession(c, user, "login")
	}
}

// POST /api/auth/refresh_token
func (ac *AuthController) RefreshToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		presented, err := c.Cookie(utils.RefreshCookieName)
		if err != nil || presented == "" {
			ac.countAuthFailure("missing_refresh_token")
			fail(c, apperrors.New(apperrors.Unauthenticated, "missing refresh token"))
			return
		}

		session, user, err := ac.Sessions.Rotate(c.Request.Context(), presented)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				ac.countAuthFailure("invalid_refresh_token")
				utils.ClearRefreshCookie(c, ac.Config.Cookie)
				fail(c, apperrors.Wrap(apperrors.Unauthenticated, "invalid refresh token", err))
				return
			}
			fail(c, apperrors.InternalWrap(err))
			return
		}

		ac.countSession("refresh")
		ac.Log.Debug("refresh token rotated", zap.String("user_id", user.ID.Hex()))
		utils.SetRefreshCookie(c, ac.Config.Cookie, session.RefreshToken, session.RefreshTokenExpiry)
		c.JSON(http.StatusOK, dto.TokenResponse{
			AccessToken:       session.AccessToken,
			AccessTokenExpiry: session.AccessTokenExpiry,
		})
	}
}

// POST /api/auth/logout
func (ac *AuthController) Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		presented, _ := c.Cookie(utils.RefreshCookieName)
		if err := ac.Sessions.Revoke(c.Request.Context(), presented); err != nil {
			ac.Log.Warn("failed to revoke refresh token", zap.Error(err))
		}
		utils.ClearRefreshCookie(c, ac.Config.Cookie)
		c.Status(http.StatusNoContent)
	}
}

// GET /api/auth/me
func (ac *AuthController) Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := currentIdentity(c)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":            id.UserID.Hex(),
			"username":      id.Username,
			"firstName":     id.FirstName,
			"lastName":      id.LastName,
			"role":          id.Role,
			"verifiedEmail": id.VerifiedEmail,
		})
	}
}

func (ac *AuthController) respondWithSession(c *gin.Context, user *models.User, trigger string) {
	session, err := ac.Sessions.Mint(c.Request.Context(), user)
	if err != nil {
		fail(c, apperrors.InternalWrap(err))
		return
	}
	ac.countSession(trigger)
	utils.SetRefreshCookie(c, ac.Config.Cookie, session.RefreshToken, session.RefreshTokenExpiry)
	c.JSON(http.StatusOK, dto.TokenResponse{
		AccessToken:       session.AccessToken,
		AccessTokenExpiry: session.AccessTokenExpiry,
	})
}

// sendConfirmation mails an email-confirmation link. Failures only get logged.
func (d *Deps) sendConfirmation(c *gin.Context, user *models.User) {
	token, err := d.Actions.Issue(user, auth.PurposeEmailConfirmation, d.Config.Auth.EmailConfirmationTTL)
	if err != nil {
		d.Log.Error("failed to issue email confirmation token", zap.Error(err))
		return
	}
	d.countActionToken(auth.PurposeEmailConfirmation, "issued")
	d.Mailer.SendEmailConfirmation(c.Request.Context(), user, token)
}

func (d *Deps) countSession(trigger string) {
	if d.Metrics != nil {
		d.Metrics.SessionsIssuedTotal.WithLabelValues(trigger).Inc()
	}
}

func (d *Deps) countAuthFailure(reason string) {
	if d.Metrics != nil {
		d.Metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	}
}
