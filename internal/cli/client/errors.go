package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NetworkError means no HTTP response was received (dial failure, timeout,
// cancelled context). The caller may retry.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: request failed: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response outside the named categories below
type StatusError struct {
	Method string
	Path   string
	Status int
	Detail string
	Body   []byte
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s failed (status %d): %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s failed (status %d): %s", e.Method, e.Path, e.Status, strings.TrimSpace(string(e.Body)))
}

// AuthError is a 401 or 403: the credential is missing, expired or rejected
type AuthError struct {
	StatusError
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("authentication failed (status %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("authentication failed (status %d)", e.Status)
}

// ValidationError is a 400 carrying a field-keyed error body. Fields holds
// the messages verbatim; nested objects are flattened to "parent.child".
type ValidationError struct {
	StatusError
	Fields map[string][]string
	// NonField collects non_field_errors
	NonField []string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields)+2)
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	if len(e.NonField) > 0 {
		parts = append(parts, strings.Join(e.NonField, " "))
	}
	for _, field := range e.FieldNames() {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Fields[field], " ")))
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldNames returns the failing field names in a stable order
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NotFoundError is a 404
type NotFoundError struct {
	StatusError
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: not found", e.Method, e.Path)
}

// ServerError is any 5xx
type ServerError struct {
	StatusError
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s %s: server error (status %d)", e.Method, e.Path, e.Status)
}

// IsNetwork reports whether err is a *NetworkError
func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsAuth reports whether err is an *AuthError
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a *ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a *NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsServer reports whether err is a *ServerError
func IsServer(err error) bool {
	var target *ServerError
	return errors.As(err, &target)
}

// newStatusError maps a non-2xx response onto the error taxonomy
func newStatusError(method, path string, status int, body []byte) error {
	base := StatusError{Method: method, Path: path, Status: status, Body: body}
	fields, nonField, detail := parseErrorBody(body)
	base.Detail = detail

	switch {
	case status == 400:
		return &ValidationError{StatusError: base, Fields: fields, NonField: nonField}
	case status == 401 || status == 403:
		return &AuthError{StatusError: base}
	case status == 404:
		return &NotFoundError{StatusError: base}
	case status >= 500:
		return &ServerError{StatusError: base}
	default:
		return &base
	}
}

// parseErrorBody understands the DRF error shapes: {"detail": "..."},
// {"field": ["msg"]}, {"field": "msg"}, {"non_field_errors": [...]} and
// nested serializers {"profile": {"cnpj": ["msg"]}}.
func parseErrorBody(body []byte) (map[string][]string, []string, string) {
	fields := map[string][]string{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return fields, nil, ""
	}

	var detail string
	var nonField []string
	for key, value := range raw {
		switch key {
		case "detail", "error":
			var s string
			if json.Unmarshal(value, &s) == nil {
				detail = s
			}
		case "non_field_errors":
			nonField = append(nonField, messages(value)...)
		default:
			flatten(key, value, fields)
		}
	}
	return fields, nonField, detail
}

func flatten(prefix string, value json.RawMessage, into map[string][]string) {
	var nested map[string]json.RawMessage
	if json.Unmarshal(value, &nested) == nil {
		for key, v := range nested {
			flatten(prefix+"."+key, v, into)
		}
		return
	}
	if msgs := messages(value); len(msgs) > 0 {
		into[prefix] = append(into[prefix], msgs...)
	}
}

func messages(value json.RawMessage) []string {
	var list []string
	if json.Unmarshal(value, &list) == nil {
		return list
	}
	var single string
	if json.Unmarshal(value, &single) == nil && single != "" {
		return []string{single}
	}
	return nil
}
