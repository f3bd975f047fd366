package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pet-vaccination-clinic/internal/platform/apperror"
	"pet-vaccination-clinic/internal/ports/storage"
)

var ErrInvalidInput = apperror.Validation("invalid_input", "invalid input")

// Validator envuelve validator/v10 y traduce los errores a apperror.Validation
// usando el nombre json del campo.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ErrInvalidInput.Wrap(err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return ErrInvalidInput.WithMessage("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "numeric":
		return fmt.Sprintf("%s must contain only digits", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

// FromStorage traduce storage.ErrInvalid (valor que la base rechaza por largo o precisión) a ErrInvalidInput.
func FromStorage(err error) error {
	if errors.Is(err, storage.ErrInvalid) {
		return ErrInvalidInput.Wrap(err)
	}
	return err
}

// MaxDecimals informa si f tiene como mucho n decimales (columnas NUMERIC(p, n)).
func MaxDecimals(f float64, n int) bool {
	scaled := f * math.Pow10(n)
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}
