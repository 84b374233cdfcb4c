package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Validator struct {
	validate *validator.Validate
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

	return &Validator{validate: v}
}

// Validate checks i against its `validate` tags. Non-struct values are always valid.
func (v *Validator) Validate(i any) ([]ValidationError, bool) {
	if i == nil {
		return nil, true
	}

	t := reflect.TypeOf(i)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, true
	}

	err := v.validate.Struct(i)
	if err == nil {
		return nil, true
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []ValidationError{{Code: "INVALID", Message: err.Error()}}, false
	}

	result := make([]ValidationError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		var message string
		switch fe.Tag() {
		case "required", "required_without":
			message = fmt.Sprintf("%s is required", fe.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
		case "max":
			message = fmt.Sprintf("%s must not exceed %s", fe.Field(), fe.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters long", fe.Field(), fe.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
		case "alphanum":
			message = fmt.Sprintf("%s must contain only letters and digits", fe.Field())
		default:
			message = fmt.Sprintf("%s is invalid", fe.Field())
		}

		result = append(result, ValidationError{
			Field:   fe.Field(),
			Code:    strings.ToUpper(fe.Tag()),
			Message: message,
		})
	}

	return result, false
}
