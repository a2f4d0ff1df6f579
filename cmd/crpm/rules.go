// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/internal/present"
	"github.com/recoveryvault/crpm/pkg/api"
	"github.com/recoveryvault/crpm/pkg/query"
)

var (
	rulesFramework string
	rulesFilter    string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Browse compliance rules and frameworks",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List compliance rules",
	Long: `List compliance rules, optionally for one framework.

Examples:
  crpm rules list
  crpm rules list --framework cis-aws
  crpm rules list --filter "critical-rules AND resource=s3_bucket"
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := setupClient()
		if err != nil {
			return err
		}
		q, err := loadFilter(cmd.ErrOrStderr(), rulesFilter)
		if err != nil {
			return err
		}
		rules, err := client.ListRules(cmd.Context(), rulesFramework)
		if err != nil {
			return err
		}
		return writeRules(cmd.OutOrStdout(), outputFormat, rules, q)
	},
}

var rulesFrameworksCmd = &cobra.Command{
	Use:   "frameworks",
	Short: "List compliance frameworks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := setupClient()
		if err != nil {
			return err
		}
		frameworks, err := client.ListFrameworks(cmd.Context())
		if err != nil {
			return err
		}
		return writeFrameworks(cmd.OutOrStdout(), outputFormat, frameworks)
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesFrameworksCmd)
	rulesListCmd.Flags().StringVar(&rulesFramework, "framework", "", "Only rules of this framework ID")
	rulesListCmd.Flags().StringVarP(&rulesFilter, "filter", "f", "", "Filter rules (e.g. severity=high)")
	_ = rulesListCmd.RegisterFlagCompletionFunc("filter", completeQueryNames)
}

func writeRules(w io.Writer, format string, rules []api.ComplianceRule, q *query.Query) error {
	rules = query.Filter(q, rules)
	if ok, err := printStructured(w, format, rules); ok {
		return err
	}
	if len(rules) == 0 {
		fmt.Fprintln(w, clierr.NothingFound("rules"))
		return nil
	}
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		enabled := okStyle.Render("yes")
		if !r.Enabled {
			enabled = dimStyle.Render("no")
		}
		rows = append(rows, []string{
			r.RuleID,
			orDash(r.FrameworkID),
			orDash(r.Category),
			present.DisplaySeverity(r.Severity),
			orDash(r.ResourceType),
			enabled,
			truncate(r.Description, 56),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"RULE", "FRAMEWORK", "CATEGORY", "SEVERITY", "RESOURCE", "ENABLED", "DESCRIPTION"}, rows))
	fmt.Fprintln(w, dimStyle.Render(strconv.Itoa(len(rules))+" rules  "+present.CountBy("severity", rules).String()))
	return nil
}

func writeFrameworks(w io.Writer, format string, frameworks []api.ComplianceFramework) error {
	if ok, err := printStructured(w, format, frameworks); ok {
		return err
	}
	if len(frameworks) == 0 {
		fmt.Fprintln(w, clierr.NothingFound("frameworks"))
		return nil
	}
	rows := make([][]string, 0, len(frameworks))
	for _, f := range frameworks {
		enabled := "yes"
		if !f.Enabled {
			enabled = "no"
		}
		rows = append(rows, []string{f.ID, f.Name, orDash(f.Version), enabled, truncate(f.Description, 56)})
	}
	fmt.Fprintln(w, renderTable([]string{"ID", "NAME", "VERSION", "ENABLED", "DESCRIPTION"}, rows))
	return nil
}
