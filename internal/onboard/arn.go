// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package onboard

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// RoleARNWarnings returns hints about a role ARN that looks wrong.
// They are advisory: the backend is the judge, so a warning never blocks a test.
func RoleARNWarnings(roleARN, accountID string) []string {
	roleARN = strings.TrimSpace(roleARN)
	if roleARN == "" {
		return nil
	}
	parsed, err := arn.Parse(roleARN)
	if err != nil {
		return []string{"role ARN is not a valid ARN (expected arn:aws:iam::<account>:role/<name>)"}
	}

	var warnings []string
	if parsed.Service != "iam" {
		warnings = append(warnings, fmt.Sprintf("role ARN service is %q, expected \"iam\"", parsed.Service))
	}
	if !strings.HasPrefix(parsed.Resource, "role/") {
		warnings = append(warnings, fmt.Sprintf("role ARN resource %q is not a role", parsed.Resource))
	}
	if accountID = strings.TrimSpace(accountID); accountID != "" && parsed.AccountID != accountID {
		warnings = append(warnings, fmt.Sprintf("role ARN belongs to account %s, not %s", parsed.AccountID, accountID))
	}
	return warnings
}
