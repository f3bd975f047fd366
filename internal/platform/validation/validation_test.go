package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/ports/storage"
)

type sample struct {
	Name   string  `json:"name" validate:"required,max=5"`
	Weight float64 `json:"weight" validate:"gte=0.01"`
	Email  string  `json:"email" validate:"omitempty,email"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(sample{Name: "Rex", Weight: 3}))

	err := v.Struct(sample{Name: "", Weight: 0, Email: "nope"})
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "weight must be greater than or equal to 0.01")
	assert.Contains(t, err.Error(), "email must be a valid email")
}

func TestMaxDecimals(t *testing.T) {
	assert.True(t, MaxDecimals(12, 2))
	assert.True(t, MaxDecimals(19.99, 2))
	assert.True(t, MaxDecimals(0.01, 2))
	assert.True(t, MaxDecimals(999999.99, 2))
	assert.False(t, MaxDecimals(12.345, 2))
	assert.False(t, MaxDecimals(0.001, 2))
}

func TestFromStorage(t *testing.T) {
	err := FromStorage(fmt.Errorf("%w: value too long", storage.ErrInvalid))
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	other := errors.New("boom")
	assert.Equal(t, other, FromStorage(other))
	assert.Nil(t, FromStorage(nil))
}
