package api

import "context"

// Coverage statuses of a resource.
const (
	CoverageProtected   = "protected"
	CoveragePartial     = "partial"
	CoverageUnprotected = "unprotected"
)

// ServiceCoverage is backup coverage of one cloud service.
type ServiceCoverage struct {
	Service     string  `json:"service"`
	Total       int     `json:"total"`
	Protected   int     `json:"protected"`
	Partial     int     `json:"partial"`
	Unprotected int     `json:"unprotected"`
	Coverage    float64 `json:"coverage"`
	Trend       string  `json:"trend,omitempty"` // up | down | stable
}

// GetField implements query.Matchable.
func (s ServiceCoverage) GetField(field string) (string, bool) {
	switch field {
	case "service":
		return s.Service, true
	case "trend":
		return s.Trend, true
	}
	return "", false
}

// CoverageItem is the backup posture of one resource.
type CoverageItem struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Service    string   `json:"service"`
	Region     string   `json:"region"`
	Status     string   `json:"status"` // protected | partial | unprotected
	LastBackup string   `json:"last_backup,omitempty"`
	NextBackup string   `json:"next_backup,omitempty"`
	RTO        string   `json:"rto,omitempty"`
	RPO        string   `json:"rpo,omitempty"`
	Policy     string   `json:"policy,omitempty"`
	Retention  string   `json:"retention,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// GetField implements query.Matchable.
func (c CoverageItem) GetField(field string) (string, bool) {
	switch field {
	case "id":
		return c.ID, true
	case "name":
		return c.Name, true
	case "type":
		return c.Type, true
	case "service":
		return c.Service, true
	case "region":
		return c.Region, true
	case "status":
		return c.Status, true
	case "policy":
		return c.Policy, true
	}
	return "", false
}

// CoverageSummary aggregates backup coverage across the tenant.
type CoverageSummary struct {
	TotalResources int     `json:"total_resources"`
	Protected      int     `json:"protected"`
	Partial        int     `json:"partial"`
	Unprotected    int     `json:"unprotected"`
	Coverage       float64 `json:"coverage"`
}

// Coverage is the body of GET /api/tenant/inventory/coverage.
type Coverage struct {
	ByService []ServiceCoverage `json:"by_service"`
	Items     []CoverageItem    `json:"items"`
	Summary   CoverageSummary   `json:"summary"`
}

// Coverage returns backup coverage by service and by resource.
func (c *Client) Coverage(ctx context.Context) (*Coverage, error) {
	out := &Coverage{}
	if err := c.get(ctx, CoveragePath, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}
