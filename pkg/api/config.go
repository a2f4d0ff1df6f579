package api

import "net/url"

// Endpoint paths for the CRPM backend.
// This file is the SINGLE SOURCE OF TRUTH for every route crpm calls.

const (
	// DefaultBaseURL is where the backend listens in a local deployment.
	DefaultBaseURL = "http://localhost:8000"

	// HealthPath answers {"status": "ok"} when the backend is up.
	HealthPath = "/healthz"

	// AccountsPath lists and creates cloud accounts.
	AccountsPath = "/api/accounts"

	// TestConnectionPath validates provider credentials without persisting anything.
	TestConnectionPath = AccountsPath + "/test-connection"

	// ComplianceRulesPath lists compliance rules, optionally by framework.
	ComplianceRulesPath = "/api/compliance/rules"

	// ComplianceFrameworksPath lists compliance frameworks.
	ComplianceFrameworksPath = "/api/compliance/frameworks"

	// ScanHistoryPath lists discovery scans; /{id} is a scan, /scan/{accountId} triggers one.
	ScanHistoryPath = "/api/tenant/discovery/history"

	// DriftOverviewPath returns the drift summary and drifted resources of one account.
	DriftOverviewPath = "/api/tenant/drift/overview"

	// DriftResourcePath returns drift detail for one asset.
	DriftResourcePath = "/api/tenant/drift/resource"

	// CoveragePath returns backup coverage by service and by resource.
	CoveragePath = "/api/tenant/inventory/coverage"
)

// DiscoveryHistoryRoute is the dashboard route a user lands on after connecting an account.
const DiscoveryHistoryRoute = "/tenant/discovery/history"

func scanPath(id string) string {
	return ScanHistoryPath + "/" + url.PathEscape(id)
}

func triggerScanPath(accountID string) string {
	return ScanHistoryPath + "/scan/" + url.PathEscape(accountID)
}

func driftResourcePath(assetID string) string {
	return DriftResourcePath + "/" + url.PathEscape(assetID)
}

func accountPath(id string) string {
	return AccountsPath + "/" + url.PathEscape(id)
}
