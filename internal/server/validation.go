package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/christlifeministries/portal/internal/forms"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// requestError carries field → message pairs for a rejected request body.
type requestError struct {
	Fields map[string]string
}

func (e *requestError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, message := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, message))
	}
	return "request validation failed: " + strings.Join(parts, "; ")
}

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("form_type", func(fl validator.FieldLevel) bool {
		_, err := forms.ParseFormType(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		amount, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && amount.IsPositive()
	})
	return &requestValidator{validate: v}
}

// Struct validates a bound request and returns *requestError for rule failures.
func (v *requestValidator) Struct(request interface{}) error {
	err := v.validate.Struct(request)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	fields := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields[fieldErr.Field()] = fieldMessage(fieldErr)
	}
	return &requestError{Fields: fields}
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fieldErr.Param(), " ", ", ")
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fieldErr.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fieldErr.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fieldErr.Param())
	case "form_type":
		return "must be bible_school, course or membership"
	case "positive_decimal":
		return "must be an amount greater than zero"
	}
	return fmt.Sprintf("failed the %s rule", fieldErr.Tag())
}
