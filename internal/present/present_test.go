// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package present

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoveryvault/crpm/pkg/api"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		part, whole int
		want        float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{7, 8, 87.5},
		{10, 10, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.part, tt.whole), "%d/%d", tt.part, tt.whole)
	}
	assert.Equal(t, "87.5%", FormatPercent(87.5))
}

func TestDisplayLabels(t *testing.T) {
	assert.Equal(t, "Backup Validation", DisplayLabel("backup-validation"))
	assert.Equal(t, "Every 6 Hours", DisplayLabel("every_6_hours"))
	assert.Equal(t, "-", DisplayLabel(""))
	assert.Equal(t, "High", DisplaySeverity("HIGH"))
	assert.Equal(t, "Critical", DisplaySeverity("critical"))
	assert.Equal(t, "-", DisplaySeverity(""))
	assert.Equal(t, "Running", DisplayStatus("running"))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{42 * time.Second, "42s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
	assert.Equal(t, "1m30s", FormatSeconds(90))
}

func TestStats(t *testing.T) {
	scans := []api.ScanItem{
		{ID: "1", Status: "completed"},
		{ID: "2", Status: "failed"},
		{ID: "3", Status: "completed"},
		{ID: "4", Status: "running"},
	}
	s := CountBy("status", scans)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Counts["completed"])
	assert.Equal(t, []string{"completed", "failed", "running"}, s.Keys())
	assert.Equal(t, "completed=2 failed=1 running=1", s.String())

	missing := CountBy("nope", scans)
	assert.Equal(t, 4, missing.Counts["-"])
}

func TestDetailLinesOrder(t *testing.T) {
	details := map[string]any{
		"zeta":                "last",
		"gcp_message":         "Successfully connected",
		"accessible_projects": float64(3),
		"project_name":        "Prod",
		"connection_test":     true,
		"alpha":               map[string]any{"b": "2", "a": "1"},
	}
	lines := DetailLines(details, map[string]string{"project_id": "my-proj", "service_account": "sa@x.iam.gserviceaccount.com"})

	var keys []string
	for _, l := range lines {
		keys = append(keys, l.Key)
	}
	assert.Equal(t, []string{
		"project_id", "service_account", "project_name", "accessible_projects",
		"gcp_message", "connection_test", "alpha.a", "alpha.b", "zeta",
	}, keys)

	require.Len(t, lines, 9)
	assert.Equal(t, "my-proj", lines[0].Value, "fallback used when backend omits the key")
	assert.Equal(t, "3", lines[3].Value)
	assert.Equal(t, "yes", lines[5].Value)
	assert.Equal(t, "Connection Test", lines[5].Label)
}

func TestDetailLinesBackendWinsOverFallback(t *testing.T) {
	lines := DetailLines(map[string]any{"project_id": "from-backend"}, map[string]string{"project_id": "typed"})
	require.Len(t, lines, 1)
	assert.Equal(t, "from-backend", lines[0].Value)
}

func TestDetailLinesEmpty(t *testing.T) {
	assert.Empty(t, DetailLines(nil, nil))
}

func TestDetailMessage(t *testing.T) {
	assert.Equal(t, "bad key", DetailMessage(map[string]any{"gcp_error": "bad key", "gcp_message": "x"}))
	assert.Equal(t, "nested", DetailMessage(map[string]any{"error": map[string]any{"message": "nested"}}))
	assert.Equal(t, "", DetailMessage(map[string]any{"gcp_error": 5}))
	assert.Equal(t, "", DetailMessage(nil))
}

func TestConnectionTestPassed(t *testing.T) {
	passed, found := ConnectionTestPassed(map[string]any{"connection_test": false})
	assert.True(t, found)
	assert.False(t, passed)

	_, found = ConnectionTestPassed(map[string]any{"connection_test": "yes"})
	assert.False(t, found)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "a, 2", FormatValue([]any{"a", float64(2)}))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "-", FormatValue(nil))
}
