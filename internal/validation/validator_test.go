package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(credentials{Email: "a@b.com", Password: "pw"}))

	err := v.Validate(credentials{Email: "not-an-email"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must be a valid email address", verr.Fields["email"])
	assert.Equal(t, "is required", verr.Fields["password"])
	assert.Equal(t, "email: must be a valid email address; password: is required", verr.Message())
}
