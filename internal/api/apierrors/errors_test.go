package apierrors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	ve := NewValidationError()
	assert.NoError(t, ve.OrNil())

	ve.Add("email", "Email is required.").Add("email", "other").Add("name", "Name is too long.")
	err := ve.OrNil()
	assert.Error(t, err)
	assert.Equal(t, "validation failed: email: Email is required., name: Name is too long.", err.Error())

	cause, ok := errors.Cause(errors.Wrap(err, "invalid payload")).(*ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "Email is required.", cause.Fields["email"])
}

func TestNotAcceptableWithMessage(t *testing.T) {
	base := NewNotAcceptableError("INVALID_PLAN")
	err := base.WithMessage("Cannot downgrade to the Basis plan.")

	assert.Equal(t, "INVALID_PLAN", err.GetCode())
	assert.Equal(t, "Cannot downgrade to the Basis plan.", err.GetMessage())
	assert.Equal(t, "not acceptable: INVALID_PLAN: Cannot downgrade to the Basis plan.", err.Error())
	assert.Empty(t, base.GetMessage())
}
