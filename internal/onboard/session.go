// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package onboard implements the cloud account onboarding wizard: the session
// collected across four steps, the state machine that gates movement between
// them, credential validation against the backend, and account creation.
//
// The package has no UI. The TUI and prompt front-ends in cmd/crpm drive a
// Controller and render its Session.
package onboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/recoveryvault/crpm/pkg/api"
)

// AWSCredentials is the material used to reach an AWS account.
type AWSCredentials struct {
	RoleARN         string
	ExternalID      string
	AccessKeyID     string
	SecretAccessKey string
}

// GCPCredentials is the material used to reach a GCP project.
type GCPCredentials struct {
	ProjectNumber       string
	ServiceAccountEmail string
	KeyJSON             string // raw service account key as pasted
}

// Credentials holds the material for whichever provider the session targets.
type Credentials struct {
	AWS AWSCredentials
	GCP GCPCredentials
}

// Connection is the outcome of the latest connection test.
type Connection struct {
	Status    ConnectionStatus
	Details   map[string]any
	JSONError string
	Message   string
}

// Session is everything collected during one onboarding attempt.
// It lives in memory only; abandoning the wizard discards it.
type Session struct {
	ID                string
	Provider          api.Provider
	AccountIdentifier string
	AccountName       string
	PrimaryRegion     string
	Credentials       Credentials
	Connection        Connection
	Schedule          Schedule
	StartedAt         time.Time
}

// NewSession starts an empty session for provider with the provider's default
// schedule. AWS sessions start with DefaultExternalID, the ID the role template
// puts in its trust policy.
func NewSession(provider api.Provider) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		Provider:   provider,
		Schedule:   DefaultSchedule(provider),
		Connection: Connection{Status: StatusIdle},
		StartedAt:  time.Now(),
	}
	if provider == api.ProviderAWS {
		s.Credentials.AWS.ExternalID = DefaultExternalID
	}
	return s
}

// HasIdentifier reports whether the account ID (AWS) or project ID (GCP) is filled in.
func (s *Session) HasIdentifier() bool {
	return strings.TrimSpace(s.AccountIdentifier) != ""
}

// HasCredentialMaterial reports whether the minimum credential input for the
// provider is present: a role ARN for AWS, key JSON text for GCP.
func (s *Session) HasCredentialMaterial() bool {
	switch s.Provider {
	case api.ProviderAWS:
		return strings.TrimSpace(s.Credentials.AWS.RoleARN) != ""
	case api.ProviderGCP:
		return strings.TrimSpace(s.Credentials.GCP.KeyJSON) != ""
	}
	return false
}

// DisplayName is the account name, falling back to the identifier.
func (s *Session) DisplayName() string {
	if name := strings.TrimSpace(s.AccountName); name != "" {
		return name
	}
	return strings.TrimSpace(s.AccountIdentifier)
}

// IdentifierLabel names the identifier field for the provider.
func (s *Session) IdentifierLabel() string {
	if s.Provider == api.ProviderGCP {
		return "Project ID"
	}
	return "AWS Account ID"
}

// Validate reports every missing or malformed field at once.
// It is used when all input arrives up front instead of step by step.
func (s *Session) Validate() error {
	var result *multierror.Error

	if s.Provider != api.ProviderAWS && s.Provider != api.ProviderGCP {
		result = multierror.Append(result, fmt.Errorf("unsupported provider %q", s.Provider))
	}
	if !s.HasIdentifier() {
		result = multierror.Append(result, fmt.Errorf("%s is required", strings.ToLower(s.IdentifierLabel())))
	}
	if !s.HasCredentialMaterial() {
		switch s.Provider {
		case api.ProviderAWS:
			result = multierror.Append(result, errors.New("role ARN is required"))
		case api.ProviderGCP:
			result = multierror.Append(result, errors.New("service account key JSON is required"))
		}
	}
	if s.Provider == api.ProviderAWS && s.Credentials.AWS.AccessKeyID != "" && s.Credentials.AWS.SecretAccessKey == "" {
		result = multierror.Append(result, errors.New("secret access key is required when an access key ID is set"))
	}
	if err := s.Schedule.Validate(s.Provider); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}
