// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package queries provides saved filter management for crpm.
//
// Saved queries are named, reusable filter expressions that can be:
// - Built-in (shipped with crpm)
// - User-defined (~/.crpm/queries.yaml)
//
// Built-in queries cover the common questions:
// - failed-scans: Discovery scans that failed
// - high-drift: High severity configuration drift
// - unprotected: Resources without any backup
package queries

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/recoveryvault/crpm/pkg/query"
)

// Query categories.
const (
	CategoryBuiltin = "builtin"
	CategoryUser    = "user"
)

// Resources a saved query can apply to.
const (
	ResourceScans    = "scans"
	ResourceDrift    = "drift"
	ResourceCoverage = "coverage"
	ResourceRules    = "rules"
	ResourceAccounts = "accounts"
)

// SavedQuery represents a named, reusable query
type SavedQuery struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Query       string `yaml:"query" json:"query"`
	Resource    string `yaml:"resource,omitempty" json:"resource,omitempty"` // empty applies to any resource
	Category    string `yaml:"category,omitempty" json:"category,omitempty"` // "builtin" or "user"
}

// QueryStore manages saved queries from multiple sources
type QueryStore struct {
	path    string
	queries []SavedQuery
}

// BuiltinQueries are shipped with crpm to help users get started
var BuiltinQueries = []SavedQuery{
	{
		Name:        "failed-scans",
		Description: "Discovery scans that failed or were cancelled",
		Query:       "status=failed,cancelled",
		Resource:    ResourceScans,
		Category:    CategoryBuiltin,
	},
	{
		Name:        "running-scans",
		Description: "Discovery scans still in progress",
		Query:       "status=running",
		Resource:    ResourceScans,
		Category:    CategoryBuiltin,
	},
	{
		Name:        "manual-scans",
		Description: "Scans started by hand rather than on schedule",
		Query:       "trigger=manual",
		Resource:    ResourceScans,
		Category:    CategoryBuiltin,
	},
	{
		Name:        "high-drift",
		Description: "High severity configuration drift",
		Query:       "severity=High",
		Resource:    ResourceDrift,
		Category:    CategoryBuiltin,
	},
	{
		Name:        "unprotected",
		Description: "Resources with no backup at all",
		Query:       "status=unprotected",
		Resource:    ResourceCoverage,
		Category:    CategoryBuiltin,
	},
	{
		Name:        "at-risk",
		Description: "Resources without full backup protection",
		Query:       "status=unprotected,partial",
		Resource:    ResourceCoverage,
		Category:    CategoryBuiltin,
	},
	{
		Name:        "critical-rules",
		Description: "Compliance rules of high or critical severity",
		Query:       "severity=high,critical",
		Resource:    ResourceRules,
		Category:    CategoryBuiltin,
	},
	{
		Name:        "disabled-rules",
		Description: "Compliance rules that are switched off",
		Query:       "enabled=false",
		Resource:    ResourceRules,
		Category:    CategoryBuiltin,
	},
	{
		Name:        "gcp-accounts",
		Description: "Connected Google Cloud projects",
		Query:       "provider=gcp",
		Resource:    ResourceAccounts,
		Category:    CategoryBuiltin,
	},
}

// UserQueriesFile is the path to user-defined queries inside configDir
func UserQueriesFile(configDir string) string {
	return filepath.Join(configDir, "queries.yaml")
}

// UserQueriesConfig is the structure of the user queries file
type UserQueriesConfig struct {
	Queries []SavedQuery `yaml:"queries"`
}

// NewQueryStore creates a new QueryStore with built-in queries and the user queries stored at path
func NewQueryStore(path string) (*QueryStore, error) {
	store := &QueryStore{
		path:    path,
		queries: make([]SavedQuery, 0, len(BuiltinQueries)),
	}

	// Add built-in queries
	store.queries = append(store.queries, BuiltinQueries...)

	// Load user queries if they exist
	userQueries, err := LoadUserQueries(path)
	if err != nil {
		return store, err
	}
	for i := range userQueries {
		userQueries[i].Category = CategoryUser
	}
	store.queries = append(store.queries, userQueries...)

	return store, nil
}

// LoadUserQueries loads queries from the user's queries file
func LoadUserQueries(path string) ([]SavedQuery, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No user queries file
		}
		return nil, fmt.Errorf("read queries file: %w", err)
	}

	var config UserQueriesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse queries file: %w", err)
	}

	return config.Queries, nil
}

// Path returns the user queries file this store reads and writes.
func (s *QueryStore) Path() string {
	return s.path
}

// Save adds or updates a user query
func (s *QueryStore) Save(q SavedQuery) error {
	if existing, found := s.Get(q.Name); found && existing.Category == CategoryBuiltin {
		return fmt.Errorf("cannot overwrite built-in query %q. Choose a different name", q.Name)
	}
	if strings.ContainsAny(q.Name, "=!~: ") {
		return fmt.Errorf("query name %q must not contain spaces or operators", q.Name)
	}
	if _, err := query.Parse(q.Query); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	q.Category = CategoryUser

	// Update or append
	found := false
	for i, existing := range s.queries {
		if existing.Name == q.Name {
			s.queries[i] = q
			found = true
			break
		}
	}
	if !found {
		s.queries = append(s.queries, q)
	}

	return s.writeUser()
}

// Delete removes a user query
func (s *QueryStore) Delete(name string) error {
	if existing, found := s.Get(name); found && existing.Category == CategoryBuiltin {
		return fmt.Errorf("cannot delete built-in query %q", name)
	}

	// Filter out the query to delete
	filtered := make([]SavedQuery, 0, len(s.queries))
	for _, q := range s.queries {
		if q.Name != name {
			filtered = append(filtered, q)
		}
	}

	if len(filtered) == len(s.queries) {
		return fmt.Errorf("query %q not found", name)
	}
	s.queries = filtered

	return s.writeUser()
}

func (s *QueryStore) writeUser() error {
	if s.path == "" {
		return fmt.Errorf("no queries file configured")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	config := UserQueriesConfig{Queries: s.ListUser()}
	for i := range config.Queries {
		config.Queries[i].Category = ""
	}
	data, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("marshal queries: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write queries file: %w", err)
	}
	return nil
}

// List returns all queries (built-in + user)
func (s *QueryStore) List() []SavedQuery {
	return s.queries
}

// ListBuiltin returns only built-in queries
func (s *QueryStore) ListBuiltin() []SavedQuery {
	return s.byCategory(CategoryBuiltin)
}

// ListUser returns only user-defined queries
func (s *QueryStore) ListUser() []SavedQuery {
	return s.byCategory(CategoryUser)
}

func (s *QueryStore) byCategory(category string) []SavedQuery {
	result := make([]SavedQuery, 0)
	for _, q := range s.queries {
		if q.Category == category {
			result = append(result, q)
		}
	}
	return result
}

// ListFor returns queries that apply to resource
func (s *QueryStore) ListFor(resource string) []SavedQuery {
	result := make([]SavedQuery, 0)
	for _, q := range s.queries {
		if q.Resource == "" || q.Resource == resource {
			result = append(result, q)
		}
	}
	return result
}

// Get returns a query by name
func (s *QueryStore) Get(name string) (*SavedQuery, bool) {
	for _, q := range s.queries {
		if q.Name == name {
			return &q, true
		}
	}
	return nil, false
}

// Expand replaces saved query names in a filter expression with their queries.
// Example: "failed-scans AND region=us-*" -> "status=failed,cancelled AND region=us-*"
//
// Expansion is textual and the filter language has no parentheses, so an
// expanded query containing OR joins its neighbours left to right.
func (s *QueryStore) Expand(expr string) string {
	tokens := strings.Fields(expr)
	result := make([]string, 0, len(tokens))

	for _, token := range tokens {
		upper := strings.ToUpper(token)
		// Skip operators
		if upper == "AND" || upper == "OR" {
			result = append(result, token)
			continue
		}

		// Conditions always carry an operator; bare words may be saved names
		if !strings.ContainsAny(token, "=:") {
			if saved, found := s.Get(token); found {
				result = append(result, saved.Query)
				continue
			}
		}

		result = append(result, token)
	}

	return strings.Join(result, " ")
}
