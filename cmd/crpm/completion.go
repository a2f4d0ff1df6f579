// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/recoveryvault/crpm/internal/config"
	"github.com/recoveryvault/crpm/internal/onboard"
	"github.com/recoveryvault/crpm/pkg/api"
	"github.com/recoveryvault/crpm/pkg/queries"
)

// completeProviders returns the supported cloud providers
func completeProviders(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	providers := []string{string(api.ProviderAWS), string(api.ProviderGCP)}
	return filterPrefix(providers, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeOutputFormats returns valid values for -o
func completeOutputFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(outputFormats, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeConfigKeys returns settable config keys for the first argument
func completeConfigKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return filterPrefix(config.Keys(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeQueryNames returns saved query names, built-in and user
func completeQueryNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	store, _ := queries.NewQueryStore(queries.UserQueriesFile(configDir()))
	if store == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, q := range store.List() {
		names = append(names, q.Name)
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeFrequencies returns discovery frequencies offered for the provider
// named by the first argument of connect, or for every provider.
func completeFrequencies(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	providers := []api.Provider{api.ProviderAWS, api.ProviderGCP}
	if len(args) > 0 {
		if p, err := api.ParseProvider(args[0]); err == nil {
			providers = []api.Provider{p}
		}
	}
	seen := map[string]bool{}
	var values []string
	for _, p := range providers {
		for _, f := range onboard.Frequencies(p) {
			if !seen[string(f)] {
				seen[string(f)] = true
				values = append(values, string(f))
			}
		}
	}
	return filterPrefix(values, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// filterPrefix filters strings by prefix (case-insensitive)
func filterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		return items
	}
	var filtered []string
	lowerPrefix := strings.ToLower(prefix)
	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(item), lowerPrefix) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
