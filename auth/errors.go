package auth

import "errors"

var (
	// ErrExpired means the token was genuine but is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalidToken covers bad signatures, malformed tokens and unknown subjects.
	ErrInvalidToken    = errors.New("invalid token")
	ErrPurposeMismatch = errors.New("token purpose mismatch")
	// ErrUnauthenticated is returned for bad credentials and unusable refresh tokens.
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrMissingCredentials = errors.New("no authentication credentials found")
)
