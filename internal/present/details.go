// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package present

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// DetailLine is one rendered entry of a connection test's details.
type DetailLine struct {
	Key   string
	Label string
	Value string
}

// knownDetailKeys are shown first, in this order. Any other key follows, sorted.
var knownDetailKeys = []string{
	"project_id",
	"service_account",
	"project_name",
	"project_number",
	"project_state",
	"accessible_projects",
	"gcp_message",
	"gcp_validation",
	"gcp_error",
	"aws_validation",
	"validation",
	"connection_test",
}

var detailLabels = map[string]string{
	"project_id":          "Project ID",
	"service_account":     "Service Account",
	"project_name":        "Project Name",
	"project_number":      "Project Number",
	"project_state":       "Project State",
	"accessible_projects": "Accessible Projects",
	"gcp_message":         "Message",
	"gcp_validation":      "Validation",
	"gcp_error":           "Error",
	"aws_validation":      "Validation",
	"validation":          "Validation",
	"connection_test":     "Connection Test",
}

// DetailLines renders an opaque details payload. The payload has no fixed
// shape, so every key is optional; fallback supplies values for keys the
// backend left out (the project ID and service account the user typed).
func DetailLines(details map[string]any, fallback map[string]string) []DetailLine {
	seen := make(map[string]bool, len(details))
	var lines []DetailLine

	for _, key := range knownDetailKeys {
		seen[key] = true
		v, found, _ := unstructured.NestedFieldNoCopy(details, key)
		if !found || v == nil {
			if fb := fallback[key]; fb != "" {
				lines = append(lines, DetailLine{Key: key, Label: detailLabels[key], Value: fb})
			}
			continue
		}
		lines = append(lines, renderDetail(key, detailLabels[key], v)...)
	}

	var rest []string
	for key := range details {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		lines = append(lines, renderDetail(key, DisplayLabel(key), details[key])...)
	}
	return lines
}

// renderDetail flattens nested maps into dotted keys.
func renderDetail(key, label string, v any) []DetailLine {
	if m, ok := v.(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var lines []DetailLine
		for _, k := range keys {
			lines = append(lines, renderDetail(key+"."+k, label+" "+DisplayLabel(k), m[k])...)
		}
		return lines
	}
	return []DetailLine{{Key: key, Label: label, Value: FormatValue(v)}}
}

// FormatValue renders a decoded JSON scalar or list.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return t
	case bool:
		if t {
			return "yes"
		}
		return "no"
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

// DetailMessage picks the most useful one-line explanation out of details,
// or "" when there is none.
func DetailMessage(details map[string]any) string {
	for _, path := range [][]string{
		{"gcp_error"},
		{"gcp_message"},
		{"message"},
		{"error", "message"},
	} {
		if s, found, err := unstructured.NestedString(details, path...); err == nil && found && s != "" {
			return s
		}
	}
	return ""
}

// ConnectionTestPassed reports the backend's connection_test flag, if present.
func ConnectionTestPassed(details map[string]any) (passed, found bool) {
	passed, found, err := unstructured.NestedBool(details, "connection_test")
	if err != nil {
		return false, false
	}
	return passed, found
}
