// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"sigs.k8s.io/yaml"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/pkg/queries"
	"github.com/recoveryvault/crpm/pkg/query"
)

// Output formats for -o.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var outputFormats = []string{formatTable, formatJSON, formatYAML}

// Shared styles for command output
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("82"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(0, 1)

	tableCellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	tableBorderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

func validateOutputFormat(f string) error {
	for _, allowed := range outputFormats {
		if f == allowed {
			return nil
		}
	}
	return clierr.Validationf("unknown output format %q (use %s)", f, strings.Join(outputFormats, ", "))
}

// printStructured writes v as JSON or YAML. It returns false for table output,
// which each command renders itself.
func printStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		return true, printJSON(w, v)
	case formatYAML:
		return true, printYAML(w, v)
	}
	return false, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML marshals through the JSON tags so field names match the API.
func printYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// renderTable renders rows under headers with a rounded border.
func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	return t.Render()
}

// renderKV renders label/value pairs as a two-column block.
func renderKV(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	var b strings.Builder
	for _, p := range pairs {
		fmt.Fprintf(&b, "  %s  %s\n", dimStyle.Render(fmt.Sprintf("%-*s", width, p[0])), p[1])
	}
	return b.String()
}

// compileFilter expands saved query names in expr and parses the result.
// A nil store disables expansion.
func compileFilter(store *queries.QueryStore, expr string) (*query.Query, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	if store != nil {
		expr = store.Expand(expr)
	}
	q, err := query.Parse(expr)
	if err != nil {
		return nil, clierr.Validation(fmt.Errorf("invalid --filter: %w", err))
	}
	return q, nil
}

// loadFilter is compileFilter against the user's saved queries.
// A corrupt queries file still leaves the built-ins usable.
func loadFilter(w io.Writer, expr string) (*query.Query, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	store, err := queries.NewQueryStore(queries.UserQueriesFile(configDir()))
	if err != nil {
		fmt.Fprintln(w, warnStyle.Render("warning: "+err.Error()))
	}
	return compileFilter(store, expr)
}

// orDash returns "-" for empty cells.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
