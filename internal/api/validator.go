package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"user-service/internal/apperr"
)

var fieldMessages = map[string]string{
	"name":  "Name must be between 2 and 100 characters",
	"email": "Must be a valid email address",
}

// Validator plugs validator/v10 into echo. Failures come back as an
// *apperr.Error carrying one FieldError per rejected field, keyed by JSON name.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(err, "Validation failed")
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("Invalid value for %s", fe.Field())
		}
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: msg})
	}
	return apperr.NewValidation("Validation failed", fields...)
}
