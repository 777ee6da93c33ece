package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/princinho/eventhub/config"
	"github.com/princinho/eventhub/models"
	"github.com/princinho/eventhub/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const refreshTokenBytes = 32

type Session struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// SessionIssuer mints stateless access tokens and ledger-backed refresh
// tokens. A user holds at most one refresh token at a time.
type SessionIssuer struct {
	users      repository.CredentialStore
	ledger     repository.TokenLedger
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewSessionIssuer(users repository.CredentialStore, ledger repository.TokenLedger, cfg config.AuthConfig, log *zap.Logger) *SessionIssuer {
	return &SessionIssuer{
		users:      users,
		ledger:     ledger,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
		log:        log,
	}
}

// WithClock replaces the time source, used by tests to move past expiry.
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	s.now = now
	return s
}

// Mint replaces any refresh token the user holds and returns a fresh pair.
func (s *SessionIssuer) Mint(ctx context.Context, user *models.User) (*Session, error) {
	now := s.now()

	access, accessExp, err := s.signAccess(user, now)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	// delete then insert is not atomic; two concurrent mints for the same
	// user can race and the loser gets ErrDuplicate from the unique index
	if err := s.ledger.DeleteByUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("drop previous refresh token: %w", err)
	}
	refreshExp := now.Add(s.refreshTTL)
	if _, err := s.ledger.Insert(ctx, user.ID, refresh, refreshExp); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		AccessToken:        access,
		AccessTokenExpiry:  accessExp,
		RefreshToken:       refresh,
		RefreshTokenExpiry: refreshExp,
	}, nil
}

// Rotate exchanges a refresh token for a new session. The presented token is
// consumed whether or not minting succeeds.
func (s *SessionIssuer) Rotate(ctx context.Context, refreshToken string) (*Session, *models.User, error) {
	if refreshToken == "" {
		return nil, nil, ErrUnauthenticated
	}

	rt, err := s.ledger.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, err
	}

	if rt.Expired(s.now()) {
		if err := s.ledger.DeleteByToken(ctx, refreshToken); err != nil {
			s.log.Warn("failed to delete expired refresh token", zap.Error(err))
		}
		return nil, nil, ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, err
	}

	if err := s.ledger.DeleteByToken(ctx, refreshToken); err != nil {
		return nil, nil, fmt.Errorf("consume refresh token: %w", err)
	}

	session, err := s.Mint(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// Verify checks an access token. Expired tokens with a valid signature yield
// ErrExpired, everything else ErrInvalidToken.
func (s *SessionIssuer) Verify(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke drops a single refresh token. Unknown tokens are not an error.
func (s *SessionIssuer) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.ledger.DeleteByToken(ctx, refreshToken)
}

// RevokeUser drops whatever refresh token the user holds.
func (s *SessionIssuer) RevokeUser(ctx context.Context, userID bson.ObjectID) error {
	return s.ledger.DeleteByUser(ctx, userID)
}

func (s *SessionIssuer) signAccess(user *models.User, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.accessTTL)
	claims := AccessClaims{
		UserID:        user.ID.Hex(),
		Username:      user.Username,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Role:          user.Role,
		VerifiedEmail: user.VerifiedEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return signed, exp, err
}

func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
