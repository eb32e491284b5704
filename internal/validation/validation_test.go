package validation

import (
	"errors"
	"strings"
	"testing"

	"civicpulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerInput struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type postInput struct {
	Title    string `form:"title" validate:"required,min=3,max=200"`
	Category string `form:"category" validate:"required,category"`
}

func TestStruct_FirstViolation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   any
		wantMsg string
	}{
		{"Valid", registerInput{Name: "Ada", Email: "ada@example.com", Password: "secret1"}, ""},
		{"Missing Name", registerInput{Email: "ada@example.com", Password: "secret1"}, "name is required"},
		{"Short Name", registerInput{Name: "A", Email: "ada@example.com", Password: "secret1"}, "name must be at least 2 characters"},
		{"Bad Email", registerInput{Name: "Ada", Email: "nope", Password: "secret1"}, "email must be a valid email"},
		{"Short Password", registerInput{Name: "Ada", Email: "ada@example.com", Password: "abc"}, "password must be at least 6 characters"},
		{"Form Tag Name", postInput{Title: "ok", Category: "Traffic"}, "title must be at least 3 characters"},
		{"Unknown Category", postInput{Title: "Pothole", Category: "Weather"}, "category must be one of: Traffic, Environment, Public Safety, Sanitation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var appErr *models.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidatePassword("secret"))
	assert.NoError(t, ValidatePassword(strings.Repeat("a", 128)))
	assert.Error(t, ValidatePassword("short"))
	assert.Error(t, ValidatePassword(strings.Repeat("a", 129)))
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		username string
		wantErr  bool
	}{
		{"test_user123", false},
		{"jane-doe", false},
		{"tu", true},
		{strings.Repeat("a", 31), true},
		{"bad name", true},
		{"émile", true},
	}
	for _, tt := range tests {
		err := ValidateUsername(tt.username)
		if tt.wantErr {
			assert.Error(t, err, tt.username)
		} else {
			assert.NoError(t, err, tt.username)
		}
	}
}
