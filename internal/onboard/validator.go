// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package onboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/recoveryvault/crpm/pkg/api"
)

// ConnectionTester is the backend capability that validates credentials.
// *api.Client implements it.
type ConnectionTester interface {
	TestConnection(ctx context.Context, req api.TestConnectionRequest) (*api.TestConnectionResponse, error)
}

// Result is the classified outcome of one connection test.
type Result struct {
	Status    ConnectionStatus
	Details   map[string]any // echoed from the backend, shape not fixed
	JSONError string         // set when the GCP key could not be parsed
	Message   string         // backend message or local field problem, if any
	Err       error          // underlying cause, for the run log only
}

// Validator submits credentials to the backend and classifies the answer.
type Validator struct {
	tester ConnectionTester
	logger *zap.Logger
}

// NewValidator creates a Validator. A nil logger discards log output.
func NewValidator(tester ConnectionTester, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{tester: tester, logger: logger}
}

// Validate tests the credentials of a.
//
// A GCP key that is not a JSON object, or a request the client rejects
// locally (such as a malformed service account email), yields StatusError
// without any request.
// Success requires a 2xx answer whose body says ok=true; any other answer,
// including a transport failure, yields StatusError.
func (v *Validator) Validate(ctx context.Context, a Attempt) Result {
	log := v.logger.With(zap.String("provider", string(a.Provider)), zap.String("account", a.AccountIdentifier))

	req, err := a.testRequest()
	if err != nil {
		var keyErr *KeyError
		msg := err.Error()
		if errors.As(err, &keyErr) {
			msg = keyErr.Display()
		}
		log.Info("connection test skipped: key is not valid JSON")
		return Result{Status: StatusError, JSONError: msg, Err: err}
	}

	resp, err := v.tester.TestConnection(ctx, req)

	var details map[string]any
	var message string
	if resp != nil {
		details = resp.Details
		message = resp.Message
	}

	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			message = describeFieldErrors(verrs)
		}
		log.Warn("connection test failed", zap.Error(err), zap.Int("status", api.StatusCode(err)))
		return Result{Status: StatusError, Details: details, Message: message, Err: err}
	}
	if resp == nil || !resp.OK {
		log.Warn("connection test rejected", zap.String("message", message))
		return Result{Status: StatusError, Details: details, Message: message}
	}

	log.Info("connection test succeeded", zap.Int("details", len(details)))
	return Result{Status: StatusSuccess, Details: details, Message: message}
}

var fieldNames = map[string]string{
	"Provider":               "provider",
	"AccountIdentifier":      "account identifier",
	"AWSRoleARN":             "role ARN",
	"AWSAccessKeyID":         "access key ID",
	"AWSSecretAccessKey":     "secret access key",
	"GCPProjectNumber":       "project number",
	"GCPServiceAccountEmail": "service account email",
	"CredentialsJSON":        "service account key",
	"DiscoveryFrequency":     "discovery frequency",
	"PreferredTimeUTC":       "preferred time",
}

// describeFieldErrors turns request validation failures into one readable line.
func describeFieldErrors(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name, ok := fieldNames[fe.Field()]
		if !ok {
			name = fe.Field()
		}
		switch fe.Tag() {
		case "required", "required_if":
			parts = append(parts, name+" is required")
		case "required_with":
			parts = append(parts, name+" is required with "+fieldNames[fe.Param()])
		case "email":
			parts = append(parts, name+" must be an email address")
		case "datetime":
			parts = append(parts, name+" must be HH:MM")
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid (%s)", name, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
