package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromKeepsAppError(t *testing.T) {
	orig := Forbidden(CodeCannotDeleteAdmin, "Cannot delete admin users")
	wrapped := fmt.Errorf("delete user: %w", orig)

	got := From(wrapped)
	assert.Same(t, orig, got)
	assert.Equal(t, http.StatusForbidden, got.HTTPCode)
}

func TestFromHidesUnknownErrors(t *testing.T) {
	cause := errors.New("pq: connection refused on 10.0.0.3")

	got := From(cause)
	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.HTTPCode)
	assert.Equal(t, "Internal server error", got.Message)
	assert.ErrorIs(t, got, cause)
}

func TestUpstreamPassesStatusThrough(t *testing.T) {
	got := Upstream(http.StatusServiceUnavailable, "model loading", nil)

	assert.Equal(t, CodeUpstream, got.Code)
	assert.Equal(t, http.StatusServiceUnavailable, got.HTTPCode)
	assert.Equal(t, "[UPSTREAM_ERROR] model loading", got.Error())
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Validation("text is required"))

	assert.True(t, HasCode(err, CodeValidation))
	assert.False(t, HasCode(err, CodeInternal))
	assert.False(t, HasCode(errors.New("plain"), CodeValidation))
}
