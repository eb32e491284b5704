// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"civicpulse/internal/database"
	"civicpulse/internal/models"

	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns a lowercase LIKE pattern matching q anywhere.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
}

// ilike renders a portable case-insensitive containment predicate for column.
func ilike(column string) string {
	return "LOWER(" + column + `) LIKE ? ESCAPE '\'`
}

// wrapNotFound converts gorm.ErrRecordNotFound into a NotFound AppError and
// any other failure into an internal error.
func wrapNotFound(err error, resource string, id any) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// wrapWrite converts unique violations into a conflict and anything else into
// an internal error.
func wrapWrite(err error, conflictMsg string) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if database.IsUniqueViolation(err) {
		return &models.AppError{Code: models.CodeConflict, Message: conflictMsg, Err: err}
	}
	return models.NewInternalError(err)
}
