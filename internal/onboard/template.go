// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package onboard

import (
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"
)

// Defaults used in the IAM role template.
const (
	DefaultExternalID     = "recovery-vault-external-id"
	DefaultRoleName       = "RecoveryVault-DiscoveryRole"
	DefaultPrincipalARN   = "arn:aws:iam::123456789012:root"
	templateFormatVersion = "2010-09-09"
)

// RoleTemplateOptions parameterizes the CloudFormation template for the discovery role.
type RoleTemplateOptions struct {
	RoleName     string
	PrincipalARN string
	ExternalID   string
}

func (o RoleTemplateOptions) withDefaults() RoleTemplateOptions {
	if o.RoleName == "" {
		o.RoleName = DefaultRoleName
	}
	if o.PrincipalARN == "" {
		o.PrincipalARN = DefaultPrincipalARN
	}
	if o.ExternalID == "" {
		o.ExternalID = DefaultExternalID
	}
	return o
}

func roleTemplate(o RoleTemplateOptions) map[string]any {
	o = o.withDefaults()
	return map[string]any{
		"AWSTemplateFormatVersion": templateFormatVersion,
		"Description":              "RecoveryVault IAM Role for AWS Account Discovery",
		"Resources": map[string]any{
			"RecoveryVaultRole": map[string]any{
				"Type": "AWS::IAM::Role",
				"Properties": map[string]any{
					"RoleName": o.RoleName,
					"AssumeRolePolicyDocument": map[string]any{
						"Version": "2012-10-17",
						"Statement": []any{
							map[string]any{
								"Effect":    "Allow",
								"Principal": map[string]any{"AWS": o.PrincipalARN},
								"Action":    "sts:AssumeRole",
								"Condition": map[string]any{
									"StringEquals": map[string]any{"sts:ExternalId": o.ExternalID},
								},
							},
						},
					},
					"ManagedPolicyArns": []any{
						"arn:aws:iam::aws:policy/ReadOnlyAccess",
						"arn:aws:iam::aws:policy/AWSBackupServiceRolePolicyForBackup",
					},
				},
			},
		},
		"Outputs": map[string]any{
			"RoleArn": map[string]any{
				"Description": "ARN of the created IAM role",
				"Value":       map[string]any{"Fn::GetAtt": []any{"RecoveryVaultRole", "Arn"}},
			},
		},
	}
}

// RoleTemplate renders the CloudFormation template that creates the discovery
// role, as "json" or "yaml".
func RoleTemplate(o RoleTemplateOptions, format string) ([]byte, error) {
	tmpl := roleTemplate(o)
	switch format {
	case "", "json":
		return json.MarshalIndent(tmpl, "", "  ")
	case "yaml":
		return yaml.Marshal(tmpl)
	}
	return nil, fmt.Errorf("unsupported template format %q (use json or yaml)", format)
}
