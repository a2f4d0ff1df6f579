// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package onboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/recoveryvault/crpm/pkg/api"
)

// DiscoveryOptions are the AWS resource families discovered for a new account.
func DiscoveryOptions() map[string]any {
	return map[string]any{"ec2": true, "rds": true, "s3": true, "ebs": true}
}

// KeyError reports a GCP service account key that is not a JSON object.
type KeyError struct {
	Err error
}

func (e *KeyError) Error() string {
	return "invalid JSON format: " + e.Err.Error()
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// Display is the inline message shown under the key field.
func (e *KeyError) Display() string {
	return "Invalid JSON format: " + e.Err.Error()
}

// ParseKeyJSON parses a pasted GCP service account key.
func ParseKeyJSON(raw string) (map[string]any, error) {
	var key map[string]any
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return nil, &KeyError{Err: err}
	}
	if key == nil {
		return nil, &KeyError{Err: errors.New("key must be a JSON object")}
	}
	return key, nil
}

// Attempt is a snapshot of the session taken when a connection test starts,
// so edits made while the request is in flight do not change what is sent.
type Attempt struct {
	Provider          api.Provider
	AccountIdentifier string
	Credentials       Credentials
}

func (s *Session) attempt() Attempt {
	return Attempt{
		Provider:          s.Provider,
		AccountIdentifier: strings.TrimSpace(s.AccountIdentifier),
		Credentials:       s.Credentials,
	}
}

// testRequest builds the test-connection body. For GCP it fails when the key is not valid JSON.
func (a Attempt) testRequest() (api.TestConnectionRequest, error) {
	req := api.TestConnectionRequest{
		Provider:          a.Provider,
		AccountIdentifier: a.AccountIdentifier,
	}
	switch a.Provider {
	case api.ProviderAWS:
		aws := a.Credentials.AWS
		req.AWSRoleARN = strings.TrimSpace(aws.RoleARN)
		req.AWSAccessKeyID = strings.TrimSpace(aws.AccessKeyID)
		req.AWSSecretAccessKey = aws.SecretAccessKey
	case api.ProviderGCP:
		gcp := a.Credentials.GCP
		key, err := ParseKeyJSON(gcp.KeyJSON)
		if err != nil {
			return req, err
		}
		req.GCPProjectNumber = strings.TrimSpace(gcp.ProjectNumber)
		req.GCPServiceAccountEmail = strings.TrimSpace(gcp.ServiceAccountEmail)
		req.CredentialsJSON = map[string]any{"gcp": key}
	}
	return req, nil
}

// createRequest builds the create-account body from the whole session.
func (s *Session) createRequest() (api.AccountCreate, error) {
	req := api.AccountCreate{
		Provider:           s.Provider,
		AccountIdentifier:  strings.TrimSpace(s.AccountIdentifier),
		Name:               s.DisplayName(),
		PrimaryRegion:      strings.TrimSpace(s.PrimaryRegion),
		DiscoveryEnabled:   true,
		DiscoveryFrequency: string(s.Schedule.Frequency),
		PreferredTimeUTC:   s.Schedule.PreferredTimeUTC,
	}
	switch s.Provider {
	case api.ProviderAWS:
		aws := s.Credentials.AWS
		req.AWSRoleARN = strings.TrimSpace(aws.RoleARN)
		req.AWSExternalID = strings.TrimSpace(aws.ExternalID)
		req.AWSAccessKeyID = strings.TrimSpace(aws.AccessKeyID)
		req.AWSSecretAccessKey = aws.SecretAccessKey
		req.DiscoveryOptions = DiscoveryOptions()
	case api.ProviderGCP:
		gcp := s.Credentials.GCP
		key, err := ParseKeyJSON(gcp.KeyJSON)
		if err != nil {
			return req, err
		}
		req.GCPProjectNumber = strings.TrimSpace(gcp.ProjectNumber)
		req.GCPServiceAccountEmail = strings.TrimSpace(gcp.ServiceAccountEmail)
		req.CredentialsJSON = map[string]any{"gcp": key}
	default:
		return req, fmt.Errorf("unsupported provider %q", s.Provider)
	}
	return req, nil
}
