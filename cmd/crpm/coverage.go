// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/internal/present"
	"github.com/recoveryvault/crpm/pkg/api"
	"github.com/recoveryvault/crpm/pkg/query"
)

var (
	coverageFilter    string
	coverageByService bool
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show backup coverage by service and resource",
	Long: `Show backup coverage by service and resource.

Examples:
  crpm coverage
  crpm coverage --filter unprotected
  crpm coverage --filter "at-risk AND region=eu-*"
  crpm coverage --by-service
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := setupClient()
		if err != nil {
			return err
		}
		q, err := loadFilter(cmd.ErrOrStderr(), coverageFilter)
		if err != nil {
			return err
		}
		cov, err := client.Coverage(cmd.Context())
		if err != nil {
			return err
		}
		return writeCoverage(cmd.OutOrStdout(), outputFormat, cov, q, coverageByService)
	},
}

func init() {
	rootCmd.AddCommand(coverageCmd)
	coverageCmd.Flags().StringVarP(&coverageFilter, "filter", "f", "", "Filter resources (e.g. status=unprotected)")
	coverageCmd.Flags().BoolVar(&coverageByService, "by-service", false, "Only show the per-service breakdown")
	_ = coverageCmd.RegisterFlagCompletionFunc("filter", completeQueryNames)
}

// coverageSummary recomputes the totals from items when the backend sent none.
func coverageSummary(cov *api.Coverage) api.CoverageSummary {
	s := cov.Summary
	if s.TotalResources > 0 || len(cov.Items) == 0 {
		return s
	}
	for _, item := range cov.Items {
		s.TotalResources++
		switch strings.ToLower(item.Status) {
		case api.CoverageProtected:
			s.Protected++
		case api.CoveragePartial:
			s.Partial++
		default:
			s.Unprotected++
		}
	}
	s.Coverage = present.Percent(s.Protected, s.TotalResources)
	return s
}

func writeCoverage(w io.Writer, format string, cov *api.Coverage, q *query.Query, byServiceOnly bool) error {
	items := query.Filter(q, cov.Items)
	summary := coverageSummary(cov)
	if ok, err := printStructured(w, format, &api.Coverage{ByService: cov.ByService, Items: items, Summary: summary}); ok {
		return err
	}

	fmt.Fprintf(w, "%s  %s of %d resources protected  %d partial  %d unprotected\n\n",
		headerStyle.Render("COVERAGE"),
		present.FormatPercent(summary.Coverage), summary.TotalResources,
		summary.Partial, summary.Unprotected)

	if len(cov.ByService) > 0 {
		rows := make([][]string, 0, len(cov.ByService))
		for _, s := range cov.ByService {
			rows = append(rows, []string{
				s.Service,
				strconv.Itoa(s.Total),
				strconv.Itoa(s.Protected),
				strconv.Itoa(s.Partial),
				strconv.Itoa(s.Unprotected),
				present.FormatPercent(s.Coverage),
				trendArrow(s.Trend),
			})
		}
		fmt.Fprintln(w, renderTable([]string{"SERVICE", "TOTAL", "PROTECTED", "PARTIAL", "UNPROTECTED", "COVERAGE", "TREND"}, rows))
	}
	if byServiceOnly {
		return nil
	}

	if len(items) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, clierr.NothingFound("resources"))
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, c := range items {
		rows = append(rows, []string{
			orDash(c.Name),
			orDash(c.Type),
			orDash(c.Service),
			orDash(c.Region),
			present.DisplayStatus(c.Status),
			orDash(c.LastBackup),
			orDash(c.Policy),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"NAME", "TYPE", "SERVICE", "REGION", "STATUS", "LAST BACKUP", "POLICY"}, rows))
	fmt.Fprintln(w, dimStyle.Render(strconv.Itoa(len(items))+" shown  "+present.CountBy("status", items).String()))
	return nil
}

func trendArrow(trend string) string {
	switch trend {
	case "up":
		return okStyle.Render("↑")
	case "down":
		return errStyle.Render("↓")
	case "stable":
		return "→"
	}
	return "-"
}
