// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/internal/config"
	"github.com/recoveryvault/crpm/internal/onboard"
	"github.com/recoveryvault/crpm/pkg/api"
)

// backend is a fake CRPM backend that serves canned JSON per path and
// records request bodies.
type backend struct {
	mu     sync.Mutex
	routes map[string]cannedResponse
	bodies map[string][]map[string]any
}

type cannedResponse struct {
	status int
	body   string
}

func newBackend(t *testing.T, routes map[string]cannedResponse) (*backend, *api.Client) {
	t.Helper()
	b := &backend{routes: routes, bodies: map[string][]map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			var body map[string]any
			_ = json.Unmarshal(data, &body)
			b.bodies[r.URL.Path] = append(b.bodies[r.URL.Path], body)
		} else {
			b.bodies[r.URL.Path] = append(b.bodies[r.URL.Path], nil)
		}
		resp, ok := b.routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = io.WriteString(w, resp.body)
	}))
	t.Cleanup(srv.Close)
	return b, api.NewClient(srv.URL)
}

func (b *backend) requests(path string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[path]
}

func scriptedController(client *api.Client, session *onboard.Session, out io.Writer, nav *terminalNavigator) *onboard.Controller {
	cfg := config.Default()
	return newConnectController(cfg, client, session, printNotifier{w: out}, nav, nil)
}

func awsSession() *onboard.Session {
	s := onboard.NewSession(api.ProviderAWS)
	s.AccountIdentifier = "123456789012"
	s.AccountName = "Production"
	s.PrimaryRegion = "us-east-1"
	s.Credentials.AWS.RoleARN = "arn:aws:iam::123456789012:role/RecoveryVault-DiscoveryRole"
	s.Credentials.AWS.ExternalID = onboard.DefaultExternalID
	return s
}

func TestRunConnectScripted_AWS(t *testing.T) {
	b, client := newBackend(t, map[string]cannedResponse{
		api.TestConnectionPath: {200, `{"ok": true, "details": {"aws_validation": "ok", "connection_test": true}}`},
		api.AccountsPath:       {201, `{"id": "acc-1", "provider": "aws", "account_identifier": "123456789012", "name": "Production"}`},
	})
	var out, errOut bytes.Buffer
	nav := &terminalNavigator{}
	ctrl := scriptedController(client, awsSession(), &out, nav)

	require.NoError(t, runConnectScripted(context.Background(), &out, &errOut, ctrl))

	assert.True(t, ctrl.Done())
	assert.Equal(t, api.DiscoveryHistoryRoute, nav.Target())
	assert.Empty(t, errOut.String())

	text := out.String()
	assert.Contains(t, text, "Testing connection to AWS 123456789012")
	assert.Contains(t, text, "✓ Connection successful")
	assert.Contains(t, text, "Connection Test")
	assert.Contains(t, text, "every 6 hours at 02:00 UTC")
	assert.Contains(t, text, "✓ Account connected")

	created := b.requests(api.AccountsPath)
	require.Len(t, created, 1)
	assert.Equal(t, "every_6_hours", created[0]["discovery_frequency"])
	assert.Equal(t, "02:00", created[0]["preferred_time_utc"])
	assert.Equal(t, true, created[0]["discovery_enabled"])
	assert.Equal(t, onboard.DefaultExternalID, created[0]["aws_external_id"])
}

func TestRunConnectScripted_ValidationStopsBeforeAnyRequest(t *testing.T) {
	b, client := newBackend(t, map[string]cannedResponse{})
	s := onboard.NewSession(api.ProviderAWS)
	s.Schedule.PreferredTimeUTC = "7pm"
	var out, errOut bytes.Buffer
	ctrl := scriptedController(client, s, &out, &terminalNavigator{})

	err := runConnectScripted(context.Background(), &out, &errOut, ctrl)
	require.Error(t, err)
	assert.True(t, clierr.IsValidation(err))
	assert.Contains(t, err.Error(), "aws account id is required")
	assert.Contains(t, err.Error(), "role ARN is required")
	assert.Contains(t, err.Error(), "HH:MM")
	assert.Empty(t, b.requests(api.TestConnectionPath))
}

func TestRunConnectScripted_RejectedConnection(t *testing.T) {
	b, client := newBackend(t, map[string]cannedResponse{
		api.TestConnectionPath: {200, `{"ok": false, "message": "Role cannot be assumed", "details": {"aws_validation": "AccessDenied"}}`},
	})
	var out, errOut bytes.Buffer
	ctrl := scriptedController(client, awsSession(), &out, &terminalNavigator{})

	err := runConnectScripted(context.Background(), &out, &errOut, ctrl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Role cannot be assumed")
	assert.Contains(t, out.String(), "✗ Connection failed")
	assert.Contains(t, out.String(), "AccessDenied")
	assert.False(t, ctrl.Done())
	assert.Empty(t, b.requests(api.AccountsPath))
}

func TestRunConnectScripted_WarnsOnMismatchedRoleARN(t *testing.T) {
	_, client := newBackend(t, map[string]cannedResponse{
		api.TestConnectionPath: {200, `{"ok": true}`},
		api.AccountsPath:       {201, `{"id": "acc-1"}`},
	})
	s := awsSession()
	s.Credentials.AWS.RoleARN = "arn:aws:iam::999999999999:role/R"
	var out, errOut bytes.Buffer
	ctrl := scriptedController(client, s, &out, &terminalNavigator{})

	require.NoError(t, runConnectScripted(context.Background(), &out, &errOut, ctrl))
	assert.Contains(t, errOut.String(), "role ARN belongs to account 999999999999")
}

func TestRunConnectScripted_GCPBadKey(t *testing.T) {
	b, client := newBackend(t, map[string]cannedResponse{})
	s := onboard.NewSession(api.ProviderGCP)
	s.AccountIdentifier = "my-project"
	s.Credentials.GCP.KeyJSON = "{not json"
	var out, errOut bytes.Buffer
	ctrl := scriptedController(client, s, &out, &terminalNavigator{})

	err := runConnectScripted(context.Background(), &out, &errOut, ctrl)
	require.Error(t, err)
	assert.True(t, clierr.IsValidation(err))
	assert.Contains(t, err.Error(), "Invalid JSON format")
	assert.Contains(t, err.Error(), "Hint:")
	assert.Empty(t, b.requests(api.TestConnectionPath))
}

func TestRunConnectScripted_CreateFails(t *testing.T) {
	_, client := newBackend(t, map[string]cannedResponse{
		api.TestConnectionPath: {200, `{"ok": true}`},
		api.AccountsPath:       {409, `{"detail": "account already exists"}`},
	})
	var out, errOut bytes.Buffer
	nav := &terminalNavigator{}
	ctrl := scriptedController(client, awsSession(), &out, nav)

	err := runConnectScripted(context.Background(), &out, &errOut, ctrl)
	require.Error(t, err)
	assert.Equal(t, 409, api.StatusCode(err))
	assert.Contains(t, out.String(), "✗ Failed to connect account")
	assert.Empty(t, nav.Target())
	assert.False(t, ctrl.Done())
}

func TestPrintRoleTemplate(t *testing.T) {
	saved := [3]string{connectPrintTemplate, connectRoleName, connectExternalID}
	t.Cleanup(func() {
		connectPrintTemplate, connectRoleName, connectExternalID = saved[0], saved[1], saved[2]
	})

	connectPrintTemplate, connectRoleName, connectExternalID = "json", "CrpmRole", "ext-42"
	var out bytes.Buffer
	require.NoError(t, printRoleTemplate(&out, api.ProviderAWS))

	var tmpl map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &tmpl))
	assert.Contains(t, out.String(), `"CrpmRole"`)
	assert.Contains(t, out.String(), `"ext-42"`)
	assert.True(t, strings.HasSuffix(out.String(), "\n"))

	err := printRoleTemplate(&out, api.ProviderGCP)
	assert.True(t, clierr.IsValidation(err))

	connectPrintTemplate = "xml"
	err = printRoleTemplate(&out, api.ProviderAWS)
	assert.True(t, clierr.IsValidation(err))
}

func TestSessionFromFlags(t *testing.T) {
	resetConnectFlags(t)

	connectAccount = " my-project "
	connectFrequency = "Weekly"
	connectTime = "04:15"
	connectSAEmail = "crpm@my-project.iam.gserviceaccount.com"
	connectKeyFile = "-"

	s, err := sessionFromFlags(strings.NewReader(`{"type": "service_account"}`), api.ProviderGCP)
	require.NoError(t, err)
	assert.Equal(t, "my-project", s.AccountIdentifier)
	assert.Equal(t, onboard.FrequencyWeekly, s.Schedule.Frequency)
	assert.Equal(t, "04:15", s.Schedule.PreferredTimeUTC)
	assert.Equal(t, `{"type": "service_account"}`, s.Credentials.GCP.KeyJSON)
	assert.NoError(t, s.Validate())

	connectFrequency = "fortnightly"
	_, err = sessionFromFlags(nil, api.ProviderGCP)
	assert.True(t, clierr.IsValidation(err))
}

func TestSessionFromFlags_AWSSecretFromEnvironment(t *testing.T) {
	resetConnectFlags(t)
	t.Setenv("AWS_SECRET_ACCESS_KEY", "from-env")

	connectAccount = "123456789012"
	connectRoleARN = "arn:aws:iam::123456789012:role/R"
	connectAccessKeyID = "AKIAEXAMPLE"

	s, err := sessionFromFlags(nil, api.ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.Credentials.AWS.SecretAccessKey)
	assert.Equal(t, onboard.FrequencyEvery6Hours, s.Schedule.Frequency)
}

func TestReadKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": 1}`), 0600))

	key, err := readKeyFile(nil, path)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, key)

	key, err = readKeyFile(nil, "")
	require.NoError(t, err)
	assert.Empty(t, key)

	_, err = readKeyFile(nil, filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, clierr.IsValidation(err))
}

func TestConnectionFailureReason(t *testing.T) {
	s := onboard.NewSession(api.ProviderGCP)
	s.Connection = onboard.Connection{
		Status:  onboard.StatusError,
		Details: map[string]any{"gcp_error": "permission denied on project"},
	}
	assert.Equal(t, "permission denied on project", connectionFailureReason(s))

	s.Connection.Message = "backend said no"
	assert.Equal(t, "backend said no", connectionFailureReason(s))

	s.Connection.JSONError = "Invalid JSON format: unexpected end of JSON input"
	assert.Equal(t, "Invalid JSON format: unexpected end of JSON input", connectionFailureReason(s))
}

func TestRenderConnectionDetails(t *testing.T) {
	s := onboard.NewSession(api.ProviderAWS)
	assert.Empty(t, renderConnectionDetails(s))

	s = onboard.NewSession(api.ProviderGCP)
	s.AccountIdentifier = "my-project"
	s.Connection.Details = map[string]any{"project_name": "My Project"}
	text := renderConnectionDetails(s)
	assert.True(t, strings.HasPrefix(text, "\n\n"))
	assert.Contains(t, text, "my-project")
	assert.Contains(t, text, "My Project")
	assert.Less(t, strings.Index(text, "my-project"), strings.Index(text, "My Project"))
}

// resetConnectFlags restores every connect flag variable after the test.
func resetConnectFlags(t *testing.T) {
	t.Helper()
	ptrs := []*string{
		&connectAccount, &connectName, &connectRegion, &connectFrequency, &connectTime, &connectRedirect,
		&connectRoleARN, &connectExternalID, &connectAccessKeyID, &connectSecretKey,
		&connectProjectNumber, &connectSAEmail, &connectKeyFile,
	}
	saved := make([]string, len(ptrs))
	for i, p := range ptrs {
		saved[i] = *p
		*p = ""
	}
	connectTime = onboard.DefaultPreferredTime
	t.Cleanup(func() {
		for i, p := range ptrs {
			*p = saved[i]
		}
	})
}
