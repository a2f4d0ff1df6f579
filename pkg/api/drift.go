package api

import "context"

// DriftSummary aggregates drift across an account.
type DriftSummary struct {
	TotalResources    int     `json:"totalResources"`
	DriftingResources int     `json:"driftingResources"`
	CriticalDrift     int     `json:"criticalDrift"`
	MediumDrift       int     `json:"mediumDrift"`
	LowDrift          int     `json:"lowDrift"`
	LastScan          string  `json:"lastScan,omitempty"`
	NextScan          *string `json:"nextScan,omitempty"`
}

// DriftItem is one drifted resource.
type DriftItem struct {
	ID             string `json:"id"`
	AssetID        string `json:"asset_id,omitempty"`
	ResourceID     string `json:"resourceId"`
	ResourceName   string `json:"resourceName"`
	Service        string `json:"service"`
	Region         string `json:"region"`
	Provider       string `json:"provider"`
	Severity       string `json:"severity"` // High | Medium | Low
	Issue          string `json:"issue"`
	DetectedAt     string `json:"detectedAt"`
	ExpectedConfig string `json:"expectedConfig"`
	CurrentConfig  string `json:"currentConfig"`
	Impact         string `json:"impact"`
}

// Asset returns the identifier to pass to DriftResource.
func (d DriftItem) Asset() string {
	if d.AssetID != "" {
		return d.AssetID
	}
	return d.ResourceID
}

// GetField implements query.Matchable.
func (d DriftItem) GetField(field string) (string, bool) {
	switch field {
	case "id":
		return d.ID, true
	case "resource", "resourceId":
		return d.ResourceID, true
	case "name", "resourceName":
		return d.ResourceName, true
	case "service":
		return d.Service, true
	case "region":
		return d.Region, true
	case "provider":
		return d.Provider, true
	case "severity":
		return d.Severity, true
	case "issue":
		return d.Issue, true
	}
	return "", false
}

// DriftOverview is the body of GET /api/tenant/drift/overview.
type DriftOverview struct {
	Summary DriftSummary `json:"summary"`
	Items   []DriftItem  `json:"items"`
}

// DriftOverview returns drift for one account.
func (c *Client) DriftOverview(ctx context.Context, accountIdentifier string) (*DriftOverview, error) {
	out := &DriftOverview{}
	q := map[string]string{"account_identifier": accountIdentifier}
	if err := c.get(ctx, DriftOverviewPath, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DriftResource returns the drift detail of one asset. The detail has no fixed shape.
func (c *Client) DriftResource(ctx context.Context, assetID, accountIdentifier string) (map[string]any, error) {
	var out struct {
		Data map[string]any `json:"data"`
	}
	q := map[string]string{"account_identifier": accountIdentifier}
	if err := c.get(ctx, driftResourcePath(assetID), q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
