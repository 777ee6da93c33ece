package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/princinho/eventhub/config"
	"github.com/princinho/eventhub/models"
	"github.com/princinho/eventhub/utils"
)

// SeedCreator inserts the configured creator account unless a user with that
// email already exists. It reports whether a record was created.
func SeedCreator(ctx context.Context, users CredentialStore, seed config.SeedConfig) (bool, error) {
	if seed.Email == "" || seed.Password == "" {
		return false, nil
	}

	_, err := users.FindByEmail(ctx, seed.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("seed lookup: %w", err)
	}

	hash, err := utils.HashPassword(seed.Password)
	if err != nil {
		return false, fmt.Errorf("hash seed password: %w", err)
	}

	username := seed.Username
	if username == "" {
		username = utils.GenerateSlug(seed.Email)
	}

	_, err = users.Create(ctx, &models.User{
		Username:      username,
		Email:         seed.Email,
		PasswordHash:  hash,
		Role:          models.RoleCreator,
		VerifiedEmail: true,
		BirthDate:     time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return false, fmt.Errorf("seed creator: %w", err)
	}
	return true, nil
}
