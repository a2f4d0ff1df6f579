package api

import (
	"context"
	"strconv"
)

// ComplianceFramework is a compliance standard such as CIS or SOC 2.
type ComplianceFramework struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// ComplianceRule is one check of a framework against a resource field.
type ComplianceRule struct {
	ID            string `json:"id"`
	FrameworkID   string `json:"framework_id"`
	RuleID        string `json:"rule_id"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	ResourceType  string `json:"resource_type"`
	FieldPath     string `json:"field_path"`
	Operator      string `json:"operator"`
	ExpectedValue any    `json:"expected_value,omitempty"`
	Severity      string `json:"severity"`
	Remediation   string `json:"remediation,omitempty"`
	Enabled       bool   `json:"enabled"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// GetField implements query.Matchable.
func (r ComplianceRule) GetField(field string) (string, bool) {
	switch field {
	case "id":
		return r.ID, true
	case "rule", "rule_id":
		return r.RuleID, true
	case "framework", "framework_id":
		return r.FrameworkID, true
	case "category":
		return r.Category, true
	case "description":
		return r.Description, true
	case "resource", "resource_type":
		return r.ResourceType, true
	case "severity":
		return r.Severity, true
	case "enabled":
		return strconv.FormatBool(r.Enabled), true
	}
	return "", false
}

// ListRules returns compliance rules. An empty frameworkID returns all of them.
func (c *Client) ListRules(ctx context.Context, frameworkID string) ([]ComplianceRule, error) {
	var q map[string]string
	if frameworkID != "" {
		q = map[string]string{"framework_id": frameworkID}
	}
	var out []ComplianceRule
	if err := c.get(ctx, ComplianceRulesPath, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFrameworks returns every compliance framework.
func (c *Client) ListFrameworks(ctx context.Context) ([]ComplianceFramework, error) {
	var out []ComplianceFramework
	if err := c.get(ctx, ComplianceFrameworksPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
