// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package clierr provides error classification and user-friendly error formatting for the CLI.
// It helps distinguish between different error types and provides actionable hints.
package clierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/recoveryvault/crpm/pkg/api"
)

// Common error types for CLI output.
const (
	TypeNotFound   = "not_found"  // Record not found on the backend
	TypeForbidden  = "forbidden"  // Missing or rejected token
	TypeNetwork    = "network"    // Connection/network errors
	TypeServer     = "server"     // Backend answered 5xx
	TypeInternal   = "internal"   // Internal/unexpected errors
	TypeValidation = "validation" // Input validation errors
)

type validationError struct {
	err error
}

func (e *validationError) Error() string { return e.err.Error() }
func (e *validationError) Unwrap() error { return e.err }

// Validation marks err as a problem with user input.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return &validationError{err: err}
}

// Validationf is Validation(fmt.Errorf(format, args...)).
func Validationf(format string, args ...any) error {
	return Validation(fmt.Errorf(format, args...))
}

// IsValidation checks if the error is rejected input, local or from the backend.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	var ve *validationError
	if errors.As(err, &ve) {
		return true
	}
	var fe validator.ValidationErrors
	if errors.As(err, &fe) {
		return true
	}
	code := api.StatusCode(err)
	return code == http.StatusBadRequest || code == http.StatusUnprocessableEntity
}

// IsForbidden checks if the error is an authentication or authorization failure.
func IsForbidden(err error) bool {
	if err == nil {
		return false
	}
	if code := api.StatusCode(err); code != 0 {
		return code == http.StatusUnauthorized || code == http.StatusForbidden
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "unauthorized")
}

// IsNotFound checks if the error indicates a missing record.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if code := api.StatusCode(err); code != 0 {
		return code == http.StatusNotFound
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// IsServerError checks if the backend failed with a 5xx status.
func IsServerError(err error) bool {
	return api.StatusCode(err) >= http.StatusInternalServerError
}

// IsNetworkError checks if the error is a connection/network error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "context deadline exceeded")
}

// ClassifyError determines the type of error for appropriate handling.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if IsValidation(err) {
		return TypeValidation
	}
	if IsForbidden(err) {
		return TypeForbidden
	}
	if IsNotFound(err) {
		return TypeNotFound
	}
	if IsServerError(err) {
		return TypeServer
	}
	if IsNetworkError(err) {
		return TypeNetwork
	}
	return TypeInternal
}

// Pretty formats an error with a user-friendly message and actionable hints.
func Pretty(err error) string {
	if err == nil {
		return ""
	}

	errType := ClassifyError(err)
	baseMsg := err.Error()

	switch errType {
	case TypeValidation:
		return fmt.Sprintf("Invalid input: %s", baseMsg)

	case TypeForbidden:
		return fmt.Sprintf("Access denied: %s\n\nHint: Check your credentials:\n"+
			"  - crpm config set token <token> to store an API token\n"+
			"  - crpm config set tenant <tenant> if your token is scoped to a tenant", baseMsg)

	case TypeNotFound:
		return fmt.Sprintf("Not found: %s", baseMsg)

	case TypeServer:
		return fmt.Sprintf("Server error: %s\n\nHint: The backend failed to handle the request. Try again,\n"+
			"or run crpm status to check backend health", baseMsg)

	case TypeNetwork:
		return fmt.Sprintf("Connection error: %s\n\nHint: Check your backend connectivity:\n"+
			"  - crpm status to verify the API URL and reachability\n"+
			"  - crpm config set api_url <url> if the backend runs elsewhere", baseMsg)

	default:
		return fmt.Sprintf("Error: %s", baseMsg)
	}
}

// WrapWithHint wraps an error with an additional hint message.
func WrapWithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w\n\nHint: %s", err, hint)
}

// NothingFound returns a user-friendly message when a query returns no results.
// This is different from an error - it's a valid "empty" result.
func NothingFound(resource string) string {
	return fmt.Sprintf("No %s found matching your criteria.\n\n"+
		"This might mean:\n"+
		"  - No %s exist for this tenant yet\n"+
		"  - Your --filter query is too restrictive\n"+
		"  - Your token may not have access to them", resource, resource)
}

// Unwrap returns the underlying error, stripping any wrapper.
func Unwrap(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}
