// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/pkg/api"
	"github.com/recoveryvault/crpm/pkg/queries"
	"github.com/recoveryvault/crpm/pkg/query"
)

func sampleScans() *api.ScanList {
	progress := 40
	return &api.ScanList{
		Summary: api.ScanSummary{TotalScans: 3, SuccessRate: 66.7, AvgDurationSeconds: 95, ResourcesScanned: 420},
		Scans: []api.ScanItem{
			{ID: "scan-1", AccountName: "Production", AccountID: "123456789012", Type: "full", Status: api.ScanCompleted, Region: "us-east-1", ResourcesScanned: 300, RecoveryScore: 82},
			{ID: "scan-2", AccountName: "Staging", AccountID: "210987654321", Type: "incremental", Status: api.ScanFailed, Region: "eu-west-1"},
			{ID: "scan-3", AccountName: "Production", AccountID: "123456789012", Type: "backup-validation", Status: api.ScanRunning, Region: "us-west-2", Progress: &progress},
		},
	}
}

func TestWriteScans(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeScans(&out, formatTable, sampleScans(), nil))

	text := out.String()
	assert.Contains(t, text, "3 scans")
	assert.Contains(t, text, "66.7% success")
	for _, id := range []string{"scan-1", "scan-2", "scan-3"} {
		assert.Contains(t, text, id)
	}
	assert.Contains(t, text, "Backup Validation")
	assert.Contains(t, text, "Running 40%")
	assert.Contains(t, text, "3 shown")
}

func TestWriteScansFiltered(t *testing.T) {
	store, err := queries.NewQueryStore(filepath.Join(t.TempDir(), "queries.yaml"))
	require.NoError(t, err)
	q, err := compileFilter(store, "failed-scans AND region=eu-*")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writeScans(&out, formatJSON, sampleScans(), q))

	var got api.ScanList
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got.Scans, 1)
	assert.Equal(t, "scan-2", got.Scans[0].ID)
	assert.Equal(t, 3, got.Summary.TotalScans, "summary is the backend's, not recomputed from the filter")
}

func TestWriteScansNothingMatches(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeScans(&out, formatTable, sampleScans(), query.MustParse("status=cancelled")))
	assert.Contains(t, out.String(), "No scans found matching your criteria.")
}

func TestWriteScanYAML(t *testing.T) {
	scan := sampleScans().Scans[0]
	var out bytes.Buffer
	require.NoError(t, writeScan(&out, formatYAML, &scan))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "scan-1", got["id"])
	assert.Equal(t, "Production", got["account_name"])
}

func TestCompileFilter(t *testing.T) {
	q, err := compileFilter(nil, "")
	require.NoError(t, err)
	assert.Nil(t, q)

	_, err = compileFilter(nil, "status")
	require.Error(t, err)
	assert.True(t, clierr.IsValidation(err))

	q, err = compileFilter(nil, "failed-scans")
	require.Error(t, err, "without a store saved names are not expanded")
	assert.Nil(t, q)
}

func TestCoverageSummaryRecomputed(t *testing.T) {
	cov := &api.Coverage{Items: []api.CoverageItem{
		{Name: "db", Status: "protected"},
		{Name: "bucket", Status: "PARTIAL"},
		{Name: "vm-1", Status: "unprotected"},
		{Name: "vm-2", Status: "protected"},
	}}
	s := coverageSummary(cov)
	assert.Equal(t, 4, s.TotalResources)
	assert.Equal(t, 2, s.Protected)
	assert.Equal(t, 1, s.Partial)
	assert.Equal(t, 1, s.Unprotected)
	assert.InDelta(t, 50.0, s.Coverage, 0.001)

	cov.Summary = api.CoverageSummary{TotalResources: 10, Protected: 9, Coverage: 90}
	assert.Equal(t, cov.Summary, coverageSummary(cov))
}

func TestWriteCoverage(t *testing.T) {
	cov := &api.Coverage{
		ByService: []api.ServiceCoverage{{Service: "EC2", Total: 2, Protected: 1, Unprotected: 1, Coverage: 50, Trend: "up"}},
		Items: []api.CoverageItem{
			{Name: "web-1", Service: "EC2", Region: "us-east-1", Status: "protected", Policy: "daily"},
			{Name: "web-2", Service: "EC2", Region: "us-east-1", Status: "unprotected"},
		},
	}

	var out bytes.Buffer
	require.NoError(t, writeCoverage(&out, formatTable, cov, query.MustParse("status=unprotected"), false))
	text := out.String()
	assert.Contains(t, text, "50.0% of 2 resources protected")
	assert.Contains(t, text, "EC2")
	assert.Contains(t, text, "↑")
	assert.Contains(t, text, "web-2")
	assert.NotContains(t, text, "web-1")

	out.Reset()
	require.NoError(t, writeCoverage(&out, formatTable, cov, nil, true))
	assert.Contains(t, out.String(), "SERVICE")
	assert.NotContains(t, out.String(), "web-1")
}

func TestWriteDrift(t *testing.T) {
	next := "2026-10-20T02:00:00Z"
	o := &api.DriftOverview{
		Summary: api.DriftSummary{TotalResources: 20, DriftingResources: 2, CriticalDrift: 1, LowDrift: 1, LastScan: "2026-10-19T02:00:00Z", NextScan: &next},
		Items: []api.DriftItem{
			{ResourceID: "i-0abc", ResourceName: "web", Service: "EC2", Severity: "High", Issue: "Security group opened to 0.0.0.0/0"},
			{AssetID: "asset-9", ResourceID: "db-1", ResourceName: "orders", Service: "RDS", Severity: "low", Issue: "Backup retention shortened"},
		},
	}

	var out bytes.Buffer
	require.NoError(t, writeDrift(&out, formatTable, o, nil, false))
	text := out.String()
	assert.Contains(t, text, "2 of 20 resources drifting (10.0%)")
	assert.Contains(t, text, "next scan "+next)
	assert.Contains(t, text, "i-0abc")
	assert.Contains(t, text, "asset-9", "asset ID wins over resource ID")
	assert.Contains(t, text, "Low")

	out.Reset()
	require.NoError(t, writeDrift(&out, formatTable, o, query.MustParse("service=S3"), false))
	assert.Contains(t, out.String(), "No drifted resources found")
}

func TestWriteDriftChanges(t *testing.T) {
	o := &api.DriftOverview{Items: []api.DriftItem{{
		ResourceID:     "vol-0def456",
		ResourceName:   "db-storage-prod",
		Severity:       "High",
		ExpectedConfig: "Encrypted: true, Backup retention: 30 days",
		CurrentConfig:  "Encrypted: false, Backup retention: 30 days",
	}}}

	var out bytes.Buffer
	require.NoError(t, writeDrift(&out, formatTable, o, nil, true))
	text := out.String()
	assert.Contains(t, text, "FIELD")
	assert.Contains(t, text, "Encrypted")
	assert.Contains(t, text, "false")
	assert.NotContains(t, text, "Backup retention", "unchanged fields are not listed")
}

func TestWriteRules(t *testing.T) {
	rules := []api.ComplianceRule{
		{RuleID: "CIS-2.1.1", FrameworkID: "cis-aws", Severity: "critical", ResourceType: "s3_bucket", Enabled: true, Description: "S3 buckets must be encrypted"},
		{RuleID: "CIS-4.1", FrameworkID: "cis-aws", Severity: "medium", ResourceType: "security_group", Enabled: false},
	}

	var out bytes.Buffer
	require.NoError(t, writeRules(&out, formatTable, rules, query.MustParse("enabled=false")))
	assert.Contains(t, out.String(), "CIS-4.1")
	assert.NotContains(t, out.String(), "CIS-2.1.1")
	assert.Contains(t, out.String(), "1 rules")

	out.Reset()
	require.NoError(t, writeFrameworks(&out, formatTable, nil))
	assert.Contains(t, out.String(), "No frameworks found")
}

func TestWriteAccounts(t *testing.T) {
	accounts := []api.Account{
		{ID: "acc-1", Provider: api.ProviderAWS, AccountIdentifier: "123456789012", Name: "Production", ConnectionStatus: "connected"},
		{ID: "acc-2", Provider: api.ProviderGCP, AccountIdentifier: "my-project", ConnectionStatus: "error"},
	}

	var out bytes.Buffer
	require.NoError(t, writeAccounts(&out, formatTable, accounts, query.MustParse("provider=gcp")))
	text := out.String()
	assert.Contains(t, text, "my-project")
	assert.Contains(t, text, "GCP")
	assert.NotContains(t, text, "Production")

	out.Reset()
	require.NoError(t, writeAccounts(&out, formatTable, nil, nil))
	assert.Contains(t, out.String(), "crpm connect aws")
}

func TestWriteAccountDetail(t *testing.T) {
	a := &api.AccountDetail{
		Account:            api.Account{ID: "acc-1", Provider: api.ProviderAWS, AccountIdentifier: "123456789012"},
		AWSRoleARN:         "arn:aws:iam::123456789012:role/CRPMDiscoveryRole",
		DiscoveryEnabled:   true,
		DiscoveryFrequency: "every_6_hours",
		PreferredTimeUTC:   "02:00",
	}
	var out bytes.Buffer
	require.NoError(t, writeAccount(&out, formatTable, a))
	text := out.String()
	assert.Contains(t, text, "AWS ACCOUNT 123456789012")
	assert.Contains(t, text, "CRPMDiscoveryRole")
	assert.Contains(t, text, "Every 6 Hours at 02:00 UTC")
}

func TestWriteStatus(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeStatus(&out, formatTable, StatusInfo{
		APIURL:     "https://crpm.example.com",
		Reachable:  false,
		ConfigFile: "/home/u/.crpm/config.yaml",
		Error:      "connection refused",
	}))
	text := out.String()
	assert.Contains(t, text, "unreachable")
	assert.Contains(t, text, "no token")
	assert.Contains(t, text, "connection refused")

	out.Reset()
	require.NoError(t, writeStatus(&out, formatJSON, StatusInfo{APIURL: "u", Reachable: true, Health: "ok"}))
	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, true, got["reachable"])
	assert.NotContains(t, got, "error")
}

func TestValidateOutputFormat(t *testing.T) {
	for _, f := range outputFormats {
		assert.NoError(t, validateOutputFormat(f))
	}
	err := validateOutputFormat("xml")
	require.Error(t, err)
	assert.True(t, clierr.IsValidation(err))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "ééé...", truncate("éééééééé", 6))
}

func TestWatchScanFinished(t *testing.T) {
	_, client := newBackend(t, map[string]cannedResponse{
		api.ScanHistoryPath + "/scan-1": {http.StatusOK, `{"id": "scan-1", "status": "completed", "resources_scanned": 12}`},
	})

	var out bytes.Buffer
	scan, err := watchScan(context.Background(), &out, client, "scan-1", 10*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, api.ScanCompleted, scan.Status)
	assert.Contains(t, out.String(), "12 resources")
	assert.Contains(t, out.String(), "✓ Scan Completed")
}

func TestWatchScanTimesOut(t *testing.T) {
	_, client := newBackend(t, map[string]cannedResponse{
		api.ScanHistoryPath + "/scan-2": {http.StatusOK, `{"id": "scan-2", "status": "running", "progress": 10}`},
	})

	var out bytes.Buffer
	scan, err := watchScan(context.Background(), &out, client, "scan-2", 10*time.Millisecond, 100*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still running")
	require.NotNil(t, scan)
	assert.True(t, scan.Running())
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("Running 10%")), "unchanged status is printed once")
}

func TestWatchScanNotFound(t *testing.T) {
	_, client := newBackend(t, map[string]cannedResponse{})

	_, err := watchScan(context.Background(), &bytes.Buffer{}, client, "nope", 10*time.Millisecond, time.Second)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, api.StatusCode(err))
}

func TestFollowRedirect(t *testing.T) {
	b, client := newBackend(t, map[string]cannedResponse{
		api.ScanHistoryPath: {http.StatusOK, `{"summary": {"total_scans": 1}, "scans": [{"id": "scan-7", "status": "running"}]}`},
	})

	var out bytes.Buffer
	require.NoError(t, followRedirect(context.Background(), &out, client, api.DiscoveryHistoryRoute))
	assert.Contains(t, out.String(), "DISCOVERY HISTORY")
	assert.Contains(t, out.String(), "scan-7")
	assert.Len(t, b.requests(api.ScanHistoryPath), 1)

	out.Reset()
	require.NoError(t, followRedirect(context.Background(), &out, client, "/tenant/accounts"))
	assert.Contains(t, out.String(), "Continue in the dashboard at /tenant/accounts")
	assert.Len(t, b.requests(api.ScanHistoryPath), 1)

	out.Reset()
	require.NoError(t, followRedirect(context.Background(), &out, client, ""))
	assert.Empty(t, out.String())
}

func TestFollowRedirectHistoryUnavailable(t *testing.T) {
	_, client := newBackend(t, map[string]cannedResponse{
		api.ScanHistoryPath: {http.StatusServiceUnavailable, `{"detail": "warming up"}`},
	})

	var out bytes.Buffer
	require.NoError(t, followRedirect(context.Background(), &out, client, api.DiscoveryHistoryRoute))
	assert.Contains(t, out.String(), "Could not load scan history")
}
