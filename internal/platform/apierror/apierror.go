// Package apierror defines the typed errors handlers and services return and
// the echo error handler that renders them.
package apierror

import (
	"fmt"
	"net/http"
	"strings"
)

// Responder is implemented by errors that know their HTTP representation.
type Responder interface {
	error
	StatusCode() int
	Body() any
}

// Body is the common JSON error envelope.
type Body struct {
	Error   string       `json:"error"`
	Message string       `json:"message,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before storage is touched when request input is
// malformed.
type ValidationError struct {
	Fields []FieldError
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

// Add appends a field error and returns v for chaining.
func (v *ValidationError) Add(field, format string, args ...any) *ValidationError {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	return v
}

// OrNil returns nil when no field errors were collected.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) StatusCode() int { return http.StatusBadRequest }

func (v *ValidationError) Body() any {
	return Body{Error: "validation_failed", Message: "request validation failed", Fields: v.Fields}
}

// NotFoundError reports an unknown record.
type NotFoundError struct {
	Resource string
	ID       string
}

func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

func (e *NotFoundError) Body() any {
	return Body{Error: "not_found", Message: e.Error()}
}

// ConflictError reports a uniqueness collision that survived a retry, or a
// duplicate natural key such as a username.
type ConflictError struct {
	Message string
}

func Conflict(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) StatusCode() int { return http.StatusConflict }

func (e *ConflictError) Body() any {
	return Body{Error: "conflict", Message: e.Message}
}

// StatusError carries an explicit status and code, for 401/403 outcomes raised
// by services.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func Unauthorized(msg string) *StatusError {
	return &StatusError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: msg}
}

func Forbidden(msg string) *StatusError {
	return &StatusError{Status: http.StatusForbidden, Code: "forbidden", Message: msg}
}

func (e *StatusError) Error() string { return e.Message }

func (e *StatusError) StatusCode() int { return e.Status }

func (e *StatusError) Body() any {
	return Body{Error: e.Code, Message: e.Message}
}
