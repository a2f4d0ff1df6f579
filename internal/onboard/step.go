// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package onboard

import "github.com/recoveryvault/crpm/pkg/api"

// Step is the position of the wizard, 1 through 4.
type Step int

const (
	StepDetails Step = iota + 1
	StepCredentials
	StepTest
	StepSchedule
)

// StepCount is the number of wizard steps.
const StepCount = 4

var stepTitles = map[api.Provider][StepCount]string{
	api.ProviderAWS: {"Account Setup", "IAM Role Creation", "Connection Test", "Discovery Setup"},
	api.ProviderGCP: {"GCP Project Details", "Service Account Credentials", "Connection Test", "Account Setup & Discovery Configuration"},
}

var stepDescriptions = map[api.Provider][StepCount]string{
	api.ProviderAWS: {
		"Configure AWS account details",
		"Create required IAM role",
		"Verify connectivity",
		"Configure resource discovery",
	},
	api.ProviderGCP: {
		"Enter your Google Cloud Platform project information",
		"Provide the service account used for discovery",
		"Verify connectivity",
		"Name the account and schedule discovery",
	},
}

// Title returns the heading of step s for provider p.
func (s Step) Title(p api.Provider) string {
	if s < StepDetails || s > StepSchedule {
		return ""
	}
	return stepTitles[p][s-1]
}

// Description returns the one-line explanation of step s for provider p.
func (s Step) Description(p api.Provider) string {
	if s < StepDetails || s > StepSchedule {
		return ""
	}
	return stepDescriptions[p][s-1]
}
