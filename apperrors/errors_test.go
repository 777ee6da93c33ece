package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Field("email", "email already in use"), http.StatusBadRequest},
		{"bad request", BadRequestf("email already verified"), http.StatusBadRequest},
		{"not found", NotFoundf("event"), http.StatusNotFound},
		{"unauthenticated", New(Unauthenticated, "wrong username or password"), http.StatusUnauthorized},
		{"expired", New(Expired, "token expired"), http.StatusUnauthorized},
		{"unauthorized", New(Unauthorized, "Not authorized"), http.StatusForbidden},
		{"conflict", New(Conflict, "username already in use"), http.StatusConflict},
		{"rate limited", New(TooManyRequests, "too many requests"), http.StatusTooManyRequests},
		{"internal", InternalWrap(errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped app error", fmt.Errorf("ctx: %w", NotFoundf("user")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestError_BodyAndUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(Internal, "internal server error", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error: db down", err.Error())
	assert.Equal(t, "internal server error", err.Body())

	v := Validation(map[string][]string{"password": {"password is too short"}})
	assert.Equal(t, map[string][]string{"password": {"password is too short"}}, v.Body())

	got, ok := As(fmt.Errorf("wrapped: %w", v))
	require.True(t, ok)
	assert.Equal(t, ValidationFailed, got.Kind)
	assert.Equal(t, "validation_failed", got.Kind.String())
}
