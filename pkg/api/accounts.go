package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Provider identifies a cloud provider.
type Provider string

const (
	ProviderAWS Provider = "aws"
	ProviderGCP Provider = "gcp"
)

// ParseProvider accepts "aws" or "gcp" in any case.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderAWS:
		return ProviderAWS, nil
	case ProviderGCP:
		return ProviderGCP, nil
	}
	return "", fmt.Errorf("unsupported provider %q (supported: aws, gcp)", s)
}

// DisplayName returns the provider in upper case, as shown to users.
func (p Provider) DisplayName() string {
	return strings.ToUpper(string(p))
}

// TestConnectionRequest is the body of POST /api/accounts/test-connection.
type TestConnectionRequest struct {
	Provider          Provider `json:"provider" validate:"required,oneof=aws gcp"`
	AccountIdentifier string   `json:"account_identifier" validate:"required"`

	AWSRoleARN         string `json:"aws_role_arn,omitempty" validate:"required_if=Provider aws"`
	AWSAccessKeyID     string `json:"aws_access_key_id,omitempty"`
	AWSSecretAccessKey string `json:"aws_secret_access_key,omitempty" validate:"required_with=AWSAccessKeyID"`

	GCPProjectNumber       string         `json:"gcp_project_number,omitempty"`
	GCPServiceAccountEmail string         `json:"gcp_sa_email,omitempty" validate:"omitempty,email"`
	CredentialsJSON        map[string]any `json:"credentials_json,omitempty" validate:"required_if=Provider gcp"`
}

// TestConnectionResponse is the backend's verdict on a set of credentials.
// Details are diagnostic and have no fixed shape.
type TestConnectionResponse struct {
	OK      bool           `json:"ok"`
	Details map[string]any `json:"details,omitempty"`
	Message string         `json:"message,omitempty"`
}

// AccountCreate is the body of POST /api/accounts.
type AccountCreate struct {
	Provider          Provider `json:"provider" validate:"required,oneof=aws gcp"`
	AccountIdentifier string   `json:"account_identifier" validate:"required"`
	Name              string   `json:"name,omitempty"`
	PrimaryRegion     string   `json:"primary_region,omitempty"`

	AWSRoleARN         string `json:"aws_role_arn,omitempty" validate:"required_if=Provider aws"`
	AWSExternalID      string `json:"aws_external_id,omitempty"`
	AWSAccessKeyID     string `json:"aws_access_key_id,omitempty"`
	AWSSecretAccessKey string `json:"aws_secret_access_key,omitempty" validate:"required_with=AWSAccessKeyID"`

	GCPProjectNumber       string         `json:"gcp_project_number,omitempty"`
	GCPServiceAccountEmail string         `json:"gcp_sa_email,omitempty" validate:"omitempty,email"`
	CredentialsJSON        map[string]any `json:"credentials_json,omitempty" validate:"required_if=Provider gcp"`

	DiscoveryEnabled   bool           `json:"discovery_enabled"`
	DiscoveryOptions   map[string]any `json:"discovery_options,omitempty"`
	DiscoveryFrequency string         `json:"discovery_frequency" validate:"required"`
	PreferredTimeUTC   string         `json:"preferred_time_utc" validate:"required,datetime=15:04"`
}

// Account is a connected cloud account as listed by the backend.
type Account struct {
	ID                string   `json:"id"`
	Provider          Provider `json:"provider"`
	AccountIdentifier string   `json:"account_identifier"`
	Name              string   `json:"name,omitempty"`
	PrimaryRegion     string   `json:"primary_region,omitempty"`
	ConnectionStatus  string   `json:"connection_status"`
}

// GetField implements query.Matchable.
func (a Account) GetField(field string) (string, bool) {
	switch field {
	case "id":
		return a.ID, true
	case "provider":
		return string(a.Provider), true
	case "account", "account_identifier":
		return a.AccountIdentifier, true
	case "name":
		return a.Name, true
	case "region":
		return a.PrimaryRegion, true
	case "status":
		return a.ConnectionStatus, true
	}
	return "", false
}

// AccountDetail is the full account record returned by GET /api/accounts/{id}.
// Credential material is never echoed back into it by crpm.
type AccountDetail struct {
	Account

	AWSRoleARN             string         `json:"aws_role_arn,omitempty"`
	AWSExternalID          string         `json:"aws_external_id,omitempty"`
	GCPProjectNumber       string         `json:"gcp_project_number,omitempty"`
	GCPServiceAccountEmail string         `json:"gcp_sa_email,omitempty"`
	DiscoveryEnabled       bool           `json:"discovery_enabled"`
	DiscoveryOptions       map[string]any `json:"discovery_options,omitempty"`
	DiscoveryFrequency     string         `json:"discovery_frequency,omitempty"`
	PreferredTimeUTC       string         `json:"preferred_time_utc,omitempty"`
	LastTestedAt           string         `json:"connection_last_tested_at,omitempty"`
	CreatedAt              string         `json:"created_at,omitempty"`
	UpdatedAt              string         `json:"updated_at,omitempty"`
}

// TestConnection asks the backend to validate credentials.
//
// A non-2xx answer returns a *StatusError together with whatever response body
// could be decoded, so diagnostic details survive a rejection.
func (c *Client) TestConnection(ctx context.Context, req TestConnectionRequest) (*TestConnectionResponse, error) {
	if err := c.checkRequest("test-connection", req); err != nil {
		return nil, err
	}

	resp, err := c.rest.R().SetContext(ctx).SetBody(req).Post(TestConnectionPath)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", TestConnectionPath, err)
	}

	out := &TestConnectionResponse{}
	decodeErr := json.Unmarshal(resp.Body(), out)

	if !resp.IsSuccess() {
		if decodeErr != nil {
			return nil, newStatusError(resp)
		}
		return out, newStatusError(resp)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode test-connection response: %w", decodeErr)
	}
	return out, nil
}

// CreateAccount persists a new account together with its discovery schedule.
// The request carries no idempotency key: submitting twice creates two records.
func (c *Client) CreateAccount(ctx context.Context, req AccountCreate) (*Account, error) {
	if err := c.checkRequest("create-account", req); err != nil {
		return nil, err
	}
	out := &Account{}
	if err := c.post(ctx, AccountsPath, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAccounts returns every connected account of the tenant.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	if err := c.get(ctx, AccountsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAccount returns one account record.
func (c *Client) GetAccount(ctx context.Context, id string) (*AccountDetail, error) {
	out := &AccountDetail{}
	if err := c.get(ctx, accountPath(id), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}
