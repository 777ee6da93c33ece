package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/princinho/eventhub/config"
	"github.com/princinho/eventhub/models"
	"github.com/princinho/eventhub/repository"
	"github.com/princinho/eventhub/utils"
)

// LoginStrategy resolves a user from an identifier and a password. Unknown
// identifiers and wrong passwords both yield ErrUnauthenticated.
type LoginStrategy interface {
	// Field is the JSON field carrying the identifier.
	Field() string
	Authenticate(ctx context.Context, identifier, password string) (*models.User, error)
}

// NewLoginStrategy picks the strategy once, at start up.
func NewLoginStrategy(method string, users repository.CredentialStore) (LoginStrategy, error) {
	switch strings.ToUpper(method) {
	case config.LoginMethodEmail:
		return &EmailStrategy{users: users}, nil
	case config.LoginMethodUsername:
		return &UsernameStrategy{users: users}, nil
	default:
		return nil, fmt.Errorf("unsupported login method %q", method)
	}
}

type EmailStrategy struct {
	users repository.CredentialStore
}

func (s *EmailStrategy) Field() string { return "email" }

func (s *EmailStrategy) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	return checkCredentials(user, err, password)
}

type UsernameStrategy struct {
	users repository.CredentialStore
}

func (s *UsernameStrategy) Field() string { return "username" }

func (s *UsernameStrategy) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(identifier))
	return checkCredentials(user, err, password)
}

func checkCredentials(user *models.User, lookupErr error, password string) (*models.User, error) {
	if lookupErr != nil {
		if errors.Is(lookupErr, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, lookupErr
	}
	if err := utils.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}
