// Package controllers holds the gin handlers. Each controller method returns a
// gin.HandlerFunc and reports failures through c.Error, leaving the response
// body to middleware.ErrorHandler.
package controllers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/princinho/eventhub/apperrors"
	"github.com/princinho/eventhub/auth"
	"github.com/princinho/eventhub/config"
	"github.com/princinho/eventhub/mailer"
	"github.com/princinho/eventhub/metrics"
	"github.com/princinho/eventhub/middleware"
	"github.com/princinho/eventhub/repository"
	"github.com/princinho/eventhub/storage"
	"go.uber.org/zap"
)

// Deps is everything the controllers need, built once in main.
type Deps struct {
	Config        *config.Config
	Users         repository.CredentialStore
	Events        repository.EventStore
	Sessions      *auth.SessionIssuer
	Actions       *auth.ActionTokenIssuer
	LoginStrategy auth.LoginStrategy
	Mailer        *mailer.Mailer
	Uploader      storage.Uploader
	Files         *storage.FileValidator
	Metrics       *metrics.Metrics
	Log           *zap.Logger
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// currentIdentity reads the identity set by the access guard.
func currentIdentity(c *gin.Context) (auth.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return auth.Identity{}, apperrors.New(apperrors.Unauthorized, "No authentication credentials found")
	}
	return id, nil
}

// storeError maps repository sentinels, everything else is internal.
func storeError(err error, resource string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFoundf(resource)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.Wrap(apperrors.Conflict, resource+" already exists", err)
	default:
		return apperrors.InternalWrap(err)
	}
}

func (d *Deps) countActionToken(purpose auth.Purpose, outcome string) {
	if d.Metrics != nil {
		d.Metrics.ActionTokensTotal.WithLabelValues(string(purpose), outcome).Inc()
	}
}

// redeemError hides decode details from clients.
func (d *Deps) redeemError(purpose auth.Purpose, err error) error {
	switch {
	case errors.Is(err, auth.ErrExpired):
		d.countActionToken(purpose, "expired")
		return apperrors.Wrap(apperrors.Expired, "token expired", err)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrPurposeMismatch):
		d.countActionToken(purpose, "invalid")
		return apperrors.Wrap(apperrors.Unauthenticated, "invalid token", err)
	default:
		return apperrors.InternalWrap(err)
	}
}
