package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorded captures the last request a test server saw.
type recorded struct {
	method string
	path   string
	query  map[string]string
	header http.Header
	body   map[string]any
}

func newTestServer(t *testing.T, status int, response string) (*Client, *recorded, *atomic.Int32) {
	t.Helper()
	rec := &recorded{}
	calls := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.header = r.Header.Clone()
		rec.query = map[string]string{}
		for k := range r.URL.Query() {
			rec.query[k] = r.URL.Query().Get(k)
		}
		rec.body = nil
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/", WithAuth(&Auth{Token: "tok-123", Tenant: "acme"}))
	return c, rec, calls
}

func awsTestRequest() TestConnectionRequest {
	return TestConnectionRequest{
		Provider:          ProviderAWS,
		AccountIdentifier: "123456789012",
		AWSRoleARN:        "arn:aws:iam::123456789012:role/CrpmReadOnly",
	}
}

func TestNewClient(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.False(t, c.Authenticated())

	c = NewClient("https://crpm.example.com///", WithAuth(&Auth{Token: "x"}))
	assert.Equal(t, "https://crpm.example.com", c.BaseURL())
	assert.True(t, c.Authenticated())
}

func TestAuthIsAuthenticated(t *testing.T) {
	var nilAuth *Auth
	assert.False(t, nilAuth.IsAuthenticated())
	assert.False(t, (&Auth{Tenant: "acme"}).IsAuthenticated())
	assert.True(t, (&Auth{Token: "t"}).IsAuthenticated())
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" AWS ")
	require.NoError(t, err)
	assert.Equal(t, ProviderAWS, p)
	assert.Equal(t, "AWS", p.DisplayName())

	p, err = ParseProvider("gcp")
	require.NoError(t, err)
	assert.Equal(t, ProviderGCP, p)

	_, err = ParseProvider("azure")
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	c, rec, _ := newTestServer(t, http.StatusOK, `{"status":"ok"}`)

	status, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, HealthPath, rec.path)
	assert.Equal(t, "Bearer tok-123", rec.header.Get("Authorization"))
	assert.Equal(t, "acme", rec.header.Get(TenantHeader))
	assert.Equal(t, UserAgent, rec.header.Get("User-Agent"))
}

func TestTestConnection(t *testing.T) {
	t.Run("success carries details", func(t *testing.T) {
		c, rec, _ := newTestServer(t, http.StatusOK, `{"ok":true,"details":{"aws_validation":"assumed role"}}`)

		resp, err := c.TestConnection(context.Background(), awsTestRequest())
		require.NoError(t, err)
		assert.True(t, resp.OK)
		assert.Equal(t, "assumed role", resp.Details["aws_validation"])

		assert.Equal(t, http.MethodPost, rec.method)
		assert.Equal(t, TestConnectionPath, rec.path)
		assert.Equal(t, "aws", rec.body["provider"])
		assert.Equal(t, "123456789012", rec.body["account_identifier"])
		assert.Equal(t, "arn:aws:iam::123456789012:role/CrpmReadOnly", rec.body["aws_role_arn"])
		assert.NotContains(t, rec.body, "aws_access_key_id")
		assert.NotContains(t, rec.body, "credentials_json")
	})

	t.Run("rejection keeps details", func(t *testing.T) {
		c, _, _ := newTestServer(t, http.StatusBadRequest, `{"ok":false,"details":{"gcp_error":"permission denied"}}`)

		req := TestConnectionRequest{
			Provider:          ProviderGCP,
			AccountIdentifier: "my-project",
			CredentialsJSON:   map[string]any{"type": "service_account"},
		}
		resp, err := c.TestConnection(context.Background(), req)
		require.Error(t, err)
		assert.True(t, IsStatus(err, http.StatusBadRequest))
		require.NotNil(t, resp)
		assert.False(t, resp.OK)
		assert.Equal(t, "permission denied", resp.Details["gcp_error"])
	})

	t.Run("undecodable rejection", func(t *testing.T) {
		c, _, _ := newTestServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)

		resp, err := c.TestConnection(context.Background(), awsTestRequest())
		assert.Nil(t, resp)
		assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	})

	t.Run("invalid request never reaches the network", func(t *testing.T) {
		c, _, calls := newTestServer(t, http.StatusOK, `{"ok":true}`)

		req := awsTestRequest()
		req.AWSRoleARN = ""
		_, err := c.TestConnection(context.Background(), req)
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, "AWSRoleARN", verrs[0].Field())
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("secret required with access key", func(t *testing.T) {
		c, _, calls := newTestServer(t, http.StatusOK, `{"ok":true}`)

		req := awsTestRequest()
		req.AWSAccessKeyID = "AKIAEXAMPLE"
		_, err := c.TestConnection(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, int32(0), calls.Load())
	})
}

func TestCreateAccount(t *testing.T) {
	c, rec, _ := newTestServer(t, http.StatusCreated,
		`{"id":"acc-1","provider":"aws","account_identifier":"123456789012","name":"prod","connection_status":"connected"}`)

	req := AccountCreate{
		Provider:           ProviderAWS,
		AccountIdentifier:  "123456789012",
		Name:               "prod",
		AWSRoleARN:         "arn:aws:iam::123456789012:role/CrpmReadOnly",
		DiscoveryEnabled:   true,
		DiscoveryOptions:   map[string]any{"ec2": true},
		DiscoveryFrequency: "every_6_hours",
		PreferredTimeUTC:   "02:00",
	}
	acc, err := c.CreateAccount(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", acc.ID)
	assert.Equal(t, "connected", acc.ConnectionStatus)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, AccountsPath, rec.path)
	assert.Equal(t, "every_6_hours", rec.body["discovery_frequency"])
	assert.Equal(t, "02:00", rec.body["preferred_time_utc"])
	assert.Equal(t, true, rec.body["discovery_enabled"])
}

func TestCreateAccountRejectsBadTime(t *testing.T) {
	c, _, calls := newTestServer(t, http.StatusCreated, `{}`)

	req := AccountCreate{
		Provider:           ProviderAWS,
		AccountIdentifier:  "123456789012",
		AWSRoleARN:         "arn:aws:iam::123456789012:role/CrpmReadOnly",
		DiscoveryFrequency: "daily",
		PreferredTimeUTC:   "25:99",
	}
	_, err := c.CreateAccount(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTestConnectionRejectsBadEmail(t *testing.T) {
	c, _, calls := newTestServer(t, http.StatusOK, `{"ok":true}`)

	req := TestConnectionRequest{
		Provider:               ProviderGCP,
		AccountIdentifier:      "my-project",
		GCPServiceAccountEmail: "not-an-email",
		CredentialsJSON:        map[string]any{"gcp": map[string]any{"type": "service_account"}},
	}
	_, err := c.TestConnection(context.Background(), req)
	require.Error(t, err)
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "email", verrs[0].Tag())
	assert.Equal(t, int32(0), calls.Load())
}

func TestCreateAccountServerError(t *testing.T) {
	c, _, _ := newTestServer(t, http.StatusConflict, `{"detail":"Account already exists"}`)

	req := AccountCreate{
		Provider:           ProviderGCP,
		AccountIdentifier:  "my-project",
		CredentialsJSON:    map[string]any{"type": "service_account"},
		DiscoveryFrequency: "daily",
		PreferredTimeUTC:   "02:00",
	}
	_, err := c.CreateAccount(context.Background(), req)
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusConflict, se.Code)
	assert.Equal(t, "Account already exists", se.Detail())
	assert.Contains(t, err.Error(), "409 Conflict: Account already exists")
}

func TestStatusErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "", want: ""},
		{name: "not json", body: "oops", want: ""},
		{name: "string detail", body: `{"detail":"Not found"}`, want: "Not found"},
		{name: "validation list", body: `{"detail":[{"msg":"field required"},{"msg":"bad value"}]}`, want: "field required; bad value"},
		{name: "message", body: `{"message":"try later"}`, want: "try later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &StatusError{Code: 400, Body: []byte(tt.body)}
			assert.Equal(t, tt.want, e.Detail())
		})
	}
	assert.Equal(t, 0, StatusCode(io.EOF))
}

func TestListAccountsAndGet(t *testing.T) {
	c, rec, _ := newTestServer(t, http.StatusOK,
		`[{"id":"a1","provider":"aws","account_identifier":"111"},{"id":"g1","provider":"gcp","account_identifier":"proj"}]`)

	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, ProviderGCP, accounts[1].Provider)
	assert.Equal(t, AccountsPath, rec.path)

	c, rec, _ = newTestServer(t, http.StatusOK, `{"id":"acc-1","provider":"aws","account_identifier":"111","discovery_frequency":"daily"}`)
	detail, err := c.GetAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "daily", detail.DiscoveryFrequency)
	assert.Equal(t, AccountsPath+"/acc-1", rec.path)
}

func TestScans(t *testing.T) {
	c, rec, _ := newTestServer(t, http.StatusOK, `{
		"summary":{"total_scans":2,"success_rate":50,"avg_duration_seconds":30,"resources_scanned":10},
		"scans":[
			{"id":"s1","account_id":"111","status":"completed","findings":{"critical":1,"high":2,"medium":0,"low":3}},
			{"id":"s2","account_id":"111","status":"running","progress":40}
		]}`)

	list, err := c.ListScans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanHistoryPath, rec.path)
	assert.Equal(t, 2, list.Summary.TotalScans)
	require.Len(t, list.Scans, 2)
	assert.Equal(t, 6, list.Scans[0].Findings.Total())
	assert.True(t, list.Scans[1].Running())
	require.NotNil(t, list.Scans[1].Progress)
	assert.Equal(t, 40, *list.Scans[1].Progress)

	c, rec, _ = newTestServer(t, http.StatusAccepted, `{"scan_id":"s3"}`)
	out, err := c.TriggerScan(context.Background(), "111")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, ScanHistoryPath+"/scan/111", rec.path)
	assert.Equal(t, "s3", out["scan_id"])
}

func TestDrift(t *testing.T) {
	c, rec, _ := newTestServer(t, http.StatusOK, `{
		"summary":{"totalResources":5,"driftingResources":1,"criticalDrift":1},
		"items":[{"id":"d1","resourceId":"i-123","severity":"High"}]}`)

	ov, err := c.DriftOverview(context.Background(), "123456789012")
	require.NoError(t, err)
	assert.Equal(t, DriftOverviewPath, rec.path)
	assert.Equal(t, "123456789012", rec.query["account_identifier"])
	assert.Equal(t, 1, ov.Summary.DriftingResources)
	assert.Equal(t, "i-123", ov.Items[0].Asset())

	c, rec, _ = newTestServer(t, http.StatusOK, `{"data":{"drift":{"field":"encryption"}}}`)
	data, err := c.DriftResource(context.Background(), "i-123", "123456789012")
	require.NoError(t, err)
	assert.Equal(t, DriftResourcePath+"/i-123", rec.path)
	assert.Contains(t, data, "drift")
}

func TestCoverageAndRules(t *testing.T) {
	c, rec, _ := newTestServer(t, http.StatusOK, `{
		"by_service":[{"service":"EC2","total":4,"protected":3,"coverage":75}],
		"items":[{"id":"r1","name":"db","status":"unprotected"}],
		"summary":{"total_resources":4,"protected":3,"coverage":75}}`)

	cov, err := c.Coverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CoveragePath, rec.path)
	assert.Equal(t, 75.0, cov.Summary.Coverage)
	assert.Equal(t, "EC2", cov.ByService[0].Service)

	c, rec, _ = newTestServer(t, http.StatusOK, `[{"id":"1","rule_id":"CIS-1.1","severity":"High","enabled":true}]`)
	rules, err := c.ListRules(context.Background(), "cis")
	require.NoError(t, err)
	assert.Equal(t, ComplianceRulesPath, rec.path)
	assert.Equal(t, "cis", rec.query["framework_id"])
	v, ok := rules[0].GetField("enabled")
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	c, rec, _ = newTestServer(t, http.StatusOK, `[{"id":"cis","name":"CIS AWS","enabled":true}]`)
	fws, err := c.ListFrameworks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ComplianceFrameworksPath, rec.path)
	assert.Equal(t, "CIS AWS", fws[0].Name)
}

func TestNotFound(t *testing.T) {
	c, _, _ := newTestServer(t, http.StatusNotFound, `{"detail":"Scan not found"}`)

	_, err := c.GetScan(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}
