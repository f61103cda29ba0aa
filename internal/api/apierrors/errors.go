package apierrors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("no data")
	ErrBadRequest    = errors.New("bad request")
	ErrInternal      = errors.New("internal error")
	ErrNotAuthorized = errors.New("not authorized")
)

type LocalizedError interface {
	GetMessage() string
}

type ErrorWithCode interface {
	GetCode() string
}

// NotAcceptableError is a business rule violation, message is shown to users as is.
type NotAcceptableError struct {
	code    string
	message string
}

func (e NotAcceptableError) Error() string {
	prefix := fmt.Sprintf("not acceptable: %s", e.code)
	if e.message != "" {
		return prefix + ": " + e.message
	}

	return prefix
}

func (e NotAcceptableError) GetMessage() string {
	return e.message
}

func (e NotAcceptableError) GetCode() string {
	return e.code
}

func (e NotAcceptableError) WithMessage(m string) *NotAcceptableError {
	return &NotAcceptableError{
		code:    e.code,
		message: m,
	}
}

func NewNotAcceptableError(code string) *NotAcceptableError {
	return &NotAcceptableError{code: code}
}

// ForbiddenError means that user is authenticated but his role doesn't allow the action.
type ForbiddenError struct {
	code    string
	message string
}

func NewForbiddenError(code, message string) *ForbiddenError {
	return &ForbiddenError{code: code, message: message}
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s: %s", e.code, e.message)
}

func (e ForbiddenError) GetMessage() string {
	return e.message
}

func (e ForbiddenError) GetCode() string {
	return e.code
}

// ValidationError maps request field names to messages.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func (e *ValidationError) Add(field, message string) *ValidationError {
	if _, ok := e.Fields[field]; !ok { // keep first message
		e.Fields[field] = message
	}
	return e
}

func (e ValidationError) HasErrors() bool {
	return len(e.Fields) != 0
}

// OrNil returns nil if there are no field errors.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e ValidationError) Error() string {
	var keys []string
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e ValidationError) GetMessage() string {
	return "One or more validation errors occurred."
}

func (e ValidationError) GetCode() string {
	return "VALIDATION_FAILED"
}

type RaceConditionError struct {
	message string
}

func NewRaceConditionError(m string) *RaceConditionError {
	return &RaceConditionError{message: m}
}

func (e RaceConditionError) Error() string {
	return fmt.Sprintf("race condition: %s", e.message)
}

func (e RaceConditionError) GetMessage() string {
	return e.message
}
