// Package validation validates request payloads and reports the first
// violated constraint in a human-readable form.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"civicpulse/internal/models"

	"github.com/go-playground/validator/v10"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
		}
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.PostCategory(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("locationtype", func(fl validator.FieldLevel) bool {
		return models.LocationType(fl.Field().String()).Valid()
	})
	return v
}

// Struct validates s and returns the first violation as a validation AppError.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return models.NewValidationError(describe(verrs[0]))
	}
	return models.NewValidationError(err.Error())
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "username":
		return fmt.Sprintf("%s can only contain letters, numbers, underscores, and hyphens", field)
	case "category":
		names := make([]string, len(models.PostCategories))
		for i, c := range models.PostCategories {
			names[i] = string(c)
		}
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(names, ", "))
	case "locationtype":
		return fmt.Sprintf("%s is not a known location type", field)
	case "latitude", "longitude":
		return fmt.Sprintf("%s must be a valid %s", field, fe.Tag())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ValidatePassword checks the password length policy.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < 6 {
		return models.NewValidationError("password must be at least 6 characters")
	}
	if n > 128 {
		return models.NewValidationError("password must be at most 128 characters")
	}
	return nil
}

// ValidateUsername checks a username's length and alphabet.
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return models.NewValidationError("username must be at least 3 characters")
	}
	if len(username) > 30 {
		return models.NewValidationError("username must be at most 30 characters")
	}
	if !usernameRegex.MatchString(username) {
		return models.NewValidationError("username can only contain letters, numbers, underscores, and hyphens")
	}
	return nil
}
