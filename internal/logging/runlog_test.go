// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewRunLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewRunLogger(dir, "connect-aws", zap.String("provider", "aws"))
	if err != nil {
		t.Fatalf("NewRunLogger failed: %v", err)
	}

	logger.Log("Test message", zap.Int("n", 1))
	logger.Section("CONNECTION TEST")
	logger.Logger().Info("from component")
	logger.Result(nil, zap.String("account", "123456789012"))

	logPath := logger.Close()
	if logPath == "" {
		t.Fatal("Expected log path, got empty string")
	}
	if !strings.HasPrefix(filepath.Base(logPath), "connect-aws-") {
		t.Errorf("Unexpected log path: %s", logPath)
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat log file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("log file mode = %v, want 0600", info.Mode().Perm())
	}

	entries := readEntries(t, logPath)
	if len(entries) != 6 {
		t.Fatalf("got %d entries, want 6", len(entries))
	}
	if entries[0]["msg"] != "run started" || entries[0]["provider"] != "aws" {
		t.Errorf("Missing header in log: %v", entries[0])
	}
	if entries[1]["msg"] != "Test message" {
		t.Errorf("Missing 'Test message' in log: %v", entries[1])
	}
	if entries[2]["section"] != "CONNECTION TEST" {
		t.Errorf("Missing section in log: %v", entries[2])
	}
	if entries[3]["command"] != "connect-aws" {
		t.Errorf("component logger lost command field: %v", entries[3])
	}
	if entries[4]["msg"] != "run succeeded" {
		t.Errorf("Missing result in log: %v", entries[4])
	}
	if entries[5]["msg"] != "run completed" {
		t.Errorf("Missing completion entry in log: %v", entries[5])
	}

	// Closing twice is harmless.
	if logger.Close() != "" {
		t.Error("second Close should return empty path")
	}
}

func TestRunLoggerFailure(t *testing.T) {
	logger, err := NewRunLogger(t.TempDir(), "connect-gcp")
	if err != nil {
		t.Fatalf("NewRunLogger failed: %v", err)
	}
	logger.Result(errors.New("backend said no"))
	entries := readEntries(t, logger.Close())

	found := false
	for _, e := range entries {
		if e["msg"] == "run failed" && e["error"] == "backend said no" && e["level"] == "error" {
			found = true
		}
	}
	if !found {
		t.Errorf("failure entry missing: %v", entries)
	}
}

func TestNilRunLogger(t *testing.T) {
	var logger *RunLogger
	logger.Log("ignored")
	logger.Section("ignored")
	logger.Result(nil)
	if logger.Logger() == nil {
		t.Error("nil RunLogger should hand out a no-op logger")
	}
	if logger.Close() != "" {
		t.Error("nil RunLogger Close should return empty path")
	}
}
