// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestCompleteProviders(t *testing.T) {
	cmd := &cobra.Command{}
	got, _ := completeProviders(cmd, nil, "g")
	if len(got) != 1 || got[0] != "gcp" {
		t.Fatalf("expected [gcp], got: %v", got)
	}

	got, _ = completeProviders(cmd, []string{"aws"}, "")
	if len(got) != 0 {
		t.Fatalf("expected no completions after the provider, got: %v", got)
	}
}

func TestCompleteFrequenciesForProvider(t *testing.T) {
	cmd := &cobra.Command{}

	aws, _ := completeFrequencies(cmd, []string{"aws"}, "every")
	if len(aws) != 2 {
		t.Fatalf("expected every_6_hours and every_12_hours for aws, got: %v", aws)
	}

	gcp, _ := completeFrequencies(cmd, []string{"gcp"}, "")
	for _, f := range gcp {
		if f == "every_6_hours" {
			t.Fatalf("gcp offers no 6-hour schedule, got: %v", gcp)
		}
	}

	all, _ := completeFrequencies(cmd, nil, "")
	seen := map[string]int{}
	for _, f := range all {
		seen[f]++
	}
	if seen["daily"] != 1 || seen["hourly"] != 1 || seen["every_6_hours"] != 1 {
		t.Fatalf("expected each frequency once across providers, got: %v", all)
	}
}

func TestCompleteQueryNamesIncludesBuiltins(t *testing.T) {
	old := configPath
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { configPath = old })

	names, _ := completeQueryNames(&cobra.Command{}, nil, "failed")
	found := false
	for _, n := range names {
		if n == "failed-scans" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected failed-scans in query completions, got: %v", names)
	}
}

func TestCompleteConfigKeys(t *testing.T) {
	keys, _ := completeConfigKeys(&cobra.Command{}, nil, "TO")
	if len(keys) != 1 || keys[0] != "token" {
		t.Fatalf("expected case-insensitive match on token, got: %v", keys)
	}
}
