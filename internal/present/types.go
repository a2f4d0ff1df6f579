// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package present holds the display arithmetic shared by crpm's table and TUI
// output. It separates labels and numbers from the CLI and TUI rendering.
package present

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/recoveryvault/crpm/pkg/query"
)

// Percent returns part/whole as a percentage rounded to one decimal place.
// A zero whole yields 0.
func Percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	p := float64(part) * 100 / float64(whole)
	return float64(int(p*10+0.5)) / 10
}

// FormatPercent renders a percentage with one decimal, e.g. "87.5%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// DisplayLabel turns a wire value such as "backup-validation" or
// "every_6_hours" into "Backup Validation" or "Every 6 Hours".
func DisplayLabel(v string) string {
	if v == "" {
		return "-"
	}
	v = strings.NewReplacer("_", " ", "-", " ").Replace(v)
	return cases.Title(language.English).String(v)
}

// DisplaySeverity normalizes severities, which the backend sends in mixed case.
func DisplaySeverity(s string) string {
	switch strings.ToLower(s) {
	case "critical":
		return "Critical"
	case "high":
		return "High"
	case "medium":
		return "Medium"
	case "low":
		return "Low"
	case "":
		return "-"
	default:
		return DisplayLabel(s)
	}
}

// DisplayStatus renders a scan, coverage or connection status.
func DisplayStatus(s string) string {
	return DisplayLabel(s)
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatSeconds is FormatDuration for second counts as sent by the backend.
func FormatSeconds(seconds float64) string {
	return FormatDuration(time.Duration(seconds * float64(time.Second)))
}

// Stats counts records by the values of one field.
type Stats struct {
	Field  string
	Counts map[string]int
	Total  int
}

// NewStats creates an empty Stats keyed by field.
func NewStats(field string) *Stats {
	return &Stats{Field: field, Counts: make(map[string]int)}
}

// Add records one entry. Entries without the field count as "-".
func (s *Stats) Add(e query.Matchable) {
	s.Total++
	v, ok := e.GetField(s.Field)
	if !ok || v == "" {
		v = "-"
	}
	s.Counts[v]++
}

// CountBy builds Stats for items on field.
func CountBy[T query.Matchable](field string, items []T) *Stats {
	s := NewStats(field)
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Keys returns the distinct values, most frequent first, ties alphabetical.
func (s *Stats) Keys() []string {
	keys := make([]string, 0, len(s.Counts))
	for k := range s.Counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if s.Counts[keys[i]] != s.Counts[keys[j]] {
			return s.Counts[keys[i]] > s.Counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// String renders "value=n" pairs in Keys order, e.g. "completed=3 failed=1".
func (s *Stats) String() string {
	parts := make([]string, 0, len(s.Counts))
	for _, k := range s.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.Counts[k]))
	}
	return strings.Join(parts, " ")
}
