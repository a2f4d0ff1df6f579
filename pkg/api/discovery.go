package api

import (
	"context"
	"strconv"
)

// Scan statuses reported by the backend.
const (
	ScanCompleted = "completed"
	ScanRunning   = "running"
	ScanFailed    = "failed"
	ScanCancelled = "cancelled"
)

// Findings counts scan findings by severity.
type Findings struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Total returns the number of findings across all severities.
func (f Findings) Total() int {
	return f.Critical + f.High + f.Medium + f.Low
}

// ScanItem is one discovery scan.
type ScanItem struct {
	ID                   string   `json:"id"`
	AccountName          string   `json:"account_name"`
	AccountID            string   `json:"account_id"`
	Type                 string   `json:"type"`   // full | incremental | compliance | backup-validation
	Status               string   `json:"status"` // completed | running | failed | cancelled
	StartTime            string   `json:"start_time"`
	EndTime              string   `json:"end_time,omitempty"`
	DurationSeconds      int      `json:"duration_seconds"`
	ResourcesScanned     int      `json:"resources_scanned"`
	ResourcesWithBackups int      `json:"resources_with_backups"`
	Findings             Findings `json:"findings"`
	RecoveryScore        int      `json:"recovery_score"`
	BackupCoverage       float64  `json:"backup_coverage"`
	TriggeredBy          string   `json:"triggered_by"` // scheduled | manual | api | webhook
	Region               string   `json:"region"`
	Progress             *int     `json:"progress,omitempty"`
	AttachmentURL        string   `json:"attachment_url,omitempty"`
}

// Running reports whether the scan has not finished yet.
func (s ScanItem) Running() bool {
	return s.Status == ScanRunning
}

// GetField implements query.Matchable.
func (s ScanItem) GetField(field string) (string, bool) {
	switch field {
	case "id":
		return s.ID, true
	case "account", "account_id":
		return s.AccountID, true
	case "account_name", "name":
		return s.AccountName, true
	case "type":
		return s.Type, true
	case "status":
		return s.Status, true
	case "triggered_by", "trigger":
		return s.TriggeredBy, true
	case "region":
		return s.Region, true
	case "score":
		return strconv.Itoa(s.RecoveryScore), true
	}
	return "", false
}

// ScanSummary aggregates the scan history.
type ScanSummary struct {
	TotalScans         int     `json:"total_scans"`
	SuccessRate        float64 `json:"success_rate"` // 0..100
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	ResourcesScanned   int     `json:"resources_scanned"`
}

// ScanList is the body of GET /api/tenant/discovery/history.
type ScanList struct {
	Summary ScanSummary `json:"summary"`
	Scans   []ScanItem  `json:"scans"`
}

// ListScans returns the discovery scan history.
func (c *Client) ListScans(ctx context.Context) (*ScanList, error) {
	out := &ScanList{}
	if err := c.get(ctx, ScanHistoryPath, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetScan returns one scan.
func (c *Client) GetScan(ctx context.Context, id string) (*ScanItem, error) {
	out := &ScanItem{}
	if err := c.get(ctx, scanPath(id), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// TriggerScan asks the backend to start a discovery scan of an account.
// The response body, if any, is returned undecoded beyond a generic map.
func (c *Client) TriggerScan(ctx context.Context, accountID string) (map[string]any, error) {
	out := map[string]any{}
	if err := c.post(ctx, triggerScanPath(accountID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
