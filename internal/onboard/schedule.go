// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package onboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/recoveryvault/crpm/pkg/api"
)

// Frequency is how often discovery runs, in its wire form.
type Frequency string

const (
	FrequencyHourly       Frequency = "hourly"
	FrequencyEvery6Hours  Frequency = "every_6_hours"
	FrequencyEvery12Hours Frequency = "every_12_hours"
	FrequencyDaily        Frequency = "daily"
	FrequencyWeekly       Frequency = "weekly"
	FrequencyMonthly      Frequency = "monthly"
)

// DefaultPreferredTime is the default discovery time of day, UTC.
const DefaultPreferredTime = "02:00"

var frequencyLabels = map[Frequency]string{
	FrequencyHourly:       "Every hour",
	FrequencyEvery6Hours:  "Every 6 hours",
	FrequencyEvery12Hours: "Every 12 hours",
	FrequencyDaily:        "Daily",
	FrequencyWeekly:       "Weekly",
	FrequencyMonthly:      "Monthly",
}

var providerFrequencies = map[api.Provider][]Frequency{
	api.ProviderAWS: {FrequencyEvery6Hours, FrequencyEvery12Hours, FrequencyDaily, FrequencyWeekly},
	api.ProviderGCP: {FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly},
}

// Label returns the human-readable name of f.
func (f Frequency) Label() string {
	if l, ok := frequencyLabels[f]; ok {
		return l
	}
	return string(f)
}

// Frequencies returns the frequencies offered for provider, in display order.
func Frequencies(p api.Provider) []Frequency {
	return providerFrequencies[p]
}

// ParseFrequency accepts a wire value ("every_6_hours") or a label ("Every 6 hours").
func ParseFrequency(s string) (Frequency, error) {
	s = strings.TrimSpace(s)
	for f, label := range frequencyLabels {
		if strings.EqualFold(s, string(f)) || strings.EqualFold(s, label) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown discovery frequency %q", s)
}

// Schedule is when discovery scans run for the new account.
type Schedule struct {
	Frequency        Frequency
	PreferredTimeUTC string // HH:MM
}

// DefaultSchedule returns the schedule preselected for provider.
func DefaultSchedule(p api.Provider) Schedule {
	f := FrequencyDaily
	if p == api.ProviderAWS {
		f = FrequencyEvery6Hours
	}
	return Schedule{Frequency: f, PreferredTimeUTC: DefaultPreferredTime}
}

// Cycle moves the frequency delta positions through the provider's options, wrapping around.
func (s *Schedule) Cycle(p api.Provider, delta int) {
	opts := Frequencies(p)
	if len(opts) == 0 {
		return
	}
	idx := 0
	for i, f := range opts {
		if f == s.Frequency {
			idx = i
			break
		}
	}
	n := len(opts)
	s.Frequency = opts[((idx+delta)%n+n)%n]
}

// Validate checks that the frequency is offered for p and the time is HH:MM.
func (s Schedule) Validate(p api.Provider) error {
	allowed := false
	for _, f := range Frequencies(p) {
		if f == s.Frequency {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("discovery frequency %q is not available for %s", s.Frequency, p.DisplayName())
	}
	return ValidatePreferredTime(s.PreferredTimeUTC)
}

// ValidatePreferredTime checks a 24-hour HH:MM time of day.
func ValidatePreferredTime(v string) error {
	if len(v) != len("15:04") {
		return fmt.Errorf("preferred time %q must be HH:MM (24-hour, UTC)", v)
	}
	if _, err := time.Parse("15:04", v); err != nil {
		return fmt.Errorf("preferred time %q must be HH:MM (24-hour, UTC)", v)
	}
	return nil
}
