// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/internal/config"
	"github.com/recoveryvault/crpm/internal/present"
	"github.com/recoveryvault/crpm/pkg/api"
	"github.com/recoveryvault/crpm/pkg/query"
)

var (
	driftAccount string
	driftFilter  string
	driftChanges bool
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Inspect configuration drift of an account",
	Long: `Inspect configuration drift of an account.

--account defaults to default_account from the config file.

Examples:
  crpm drift overview --account 123456789012
  crpm drift overview --filter "high-drift AND service=RDS"
  crpm drift overview --changes
  crpm drift resource i-0abc123 --account 123456789012
`,
}

var driftOverviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Summarize drift and list drifted resources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := setupClient()
		if err != nil {
			return err
		}
		account, err := driftAccountID(cfg)
		if err != nil {
			return err
		}
		q, err := loadFilter(cmd.ErrOrStderr(), driftFilter)
		if err != nil {
			return err
		}
		overview, err := client.DriftOverview(cmd.Context(), account)
		if err != nil {
			return err
		}
		return writeDrift(cmd.OutOrStdout(), outputFormat, overview, q, driftChanges)
	},
}

var driftResourceCmd = &cobra.Command{
	Use:   "resource ASSET_ID",
	Short: "Show drift detail for one resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := setupClient()
		if err != nil {
			return err
		}
		account, err := driftAccountID(cfg)
		if err != nil {
			return err
		}
		detail, err := client.DriftResource(cmd.Context(), args[0], account)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if ok, err := printStructured(w, outputFormat, detail); ok {
			return err
		}
		fmt.Fprintln(w, headerStyle.Render("DRIFT "+args[0]))
		if len(detail) == 0 {
			fmt.Fprintln(w, dimStyle.Render("  no drift detail recorded"))
			return nil
		}
		pairs := make([][2]string, 0, len(detail))
		for _, line := range present.DetailLines(detail, nil) {
			pairs = append(pairs, [2]string{line.Label, line.Value})
		}
		fmt.Fprint(w, renderKV(pairs))
		expected, _ := detail["expectedConfig"].(string)
		current, _ := detail["currentConfig"].(string)
		writeConfigChanges(w, query.ConfigChanges(expected, current))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(driftCmd)
	driftCmd.AddCommand(driftOverviewCmd, driftResourceCmd)

	driftCmd.PersistentFlags().StringVar(&driftAccount, "account", "", "Account identifier (default: default_account)")
	driftOverviewCmd.Flags().StringVarP(&driftFilter, "filter", "f", "", "Filter drifted resources (e.g. severity=High)")
	driftOverviewCmd.Flags().BoolVar(&driftChanges, "changes", false, "Show expected and current values of each drifted field")
	_ = driftOverviewCmd.RegisterFlagCompletionFunc("filter", completeQueryNames)
}

func driftAccountID(cfg *config.Config) (string, error) {
	if driftAccount != "" {
		return driftAccount, nil
	}
	if cfg.DefaultAccount != "" {
		return cfg.DefaultAccount, nil
	}
	return "", clierr.Validationf("--account is required (or set one: crpm config set default_account <id>)")
}

func writeDrift(w io.Writer, format string, o *api.DriftOverview, q *query.Query, changes bool) error {
	items := query.Filter(q, o.Items)
	if ok, err := printStructured(w, format, &api.DriftOverview{Summary: o.Summary, Items: items}); ok {
		return err
	}

	s := o.Summary
	fmt.Fprintf(w, "%s  %d of %d resources drifting (%s)  %d critical  %d medium  %d low\n",
		headerStyle.Render("DRIFT"),
		s.DriftingResources, s.TotalResources,
		present.FormatPercent(present.Percent(s.DriftingResources, s.TotalResources)),
		s.CriticalDrift, s.MediumDrift, s.LowDrift)
	next := "-"
	if s.NextScan != nil {
		next = *s.NextScan
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("last scan %s  next scan %s", orDash(s.LastScan), next)))

	if len(items) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, clierr.NothingFound("drifted resources"))
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, d := range items {
		rows = append(rows, []string{
			d.Asset(),
			orDash(d.ResourceName),
			orDash(d.Service),
			orDash(d.Region),
			present.DisplaySeverity(d.Severity),
			truncate(d.Issue, 48),
			orDash(d.DetectedAt),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"ASSET", "NAME", "SERVICE", "REGION", "SEVERITY", "ISSUE", "DETECTED"}, rows))
	fmt.Fprintln(w, dimStyle.Render(strconv.Itoa(len(items))+" shown  "+present.CountBy("severity", items).String()))

	if changes {
		for _, d := range items {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%s %s\n", headerStyle.Render(d.Asset()), dimStyle.Render(orDash(d.ResourceName)))
			writeConfigChanges(w, query.ConfigChanges(d.ExpectedConfig, d.CurrentConfig))
		}
	}
	return nil
}

// writeConfigChanges lists field-level differences between baseline and current config.
func writeConfigChanges(w io.Writer, changes []query.ConfigChange) {
	if len(changes) == 0 {
		return
	}
	rows := make([][]string, 0, len(changes))
	for _, c := range changes {
		field := c.Path
		if field == query.WholeConfig {
			field = "config"
		}
		rows = append(rows, []string{field, changeValue(c.Expected), changeValue(c.Current)})
	}
	fmt.Fprintln(w, renderTable([]string{"FIELD", "EXPECTED", "CURRENT"}, rows))
}

func changeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return dimStyle.Render("<not set>")
	case bool:
		return strconv.FormatBool(t)
	}
	return truncate(present.FormatValue(v), 60)
}
