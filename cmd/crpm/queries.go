// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/pkg/queries"
)

var queriesResource string

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "List and manage saved queries",
	Long: `List and manage saved queries for --filter.

Saved queries are named, reusable filter expressions. They come in two types:
- Built-in: Shipped with crpm to help you get started
- User: Your custom queries saved in ~/.crpm/queries.yaml

Use saved queries with --filter:
  crpm scans list --filter failed-scans
  crpm coverage --filter "at-risk AND region=eu-*"

Examples:
  # List all saved queries
  crpm queries

  # Save a new query
  crpm queries save eu-prod "region=eu-* AND name:prod" "EU production" --resource coverage

  # Delete a user query
  crpm queries delete eu-prod
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openQueryStore()
		if err != nil {
			return err
		}
		return writeQueries(cmd.OutOrStdout(), outputFormat, store)
	},
}

var queriesSaveCmd = &cobra.Command{
	Use:   "save NAME QUERY [DESCRIPTION]",
	Short: "Save a new user query",
	Long: `Save a new user query to ~/.crpm/queries.yaml.

Examples:
  crpm queries save my-fails "status=failed AND trigger=scheduled"
  crpm queries save rds-drift "service=RDS" "RDS drift" --resource drift
`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openQueryStore()
		if err != nil {
			return err
		}
		q := queries.SavedQuery{Name: args[0], Query: args[1], Resource: queriesResource}
		if len(args) > 2 {
			q.Description = args[2]
		}
		if err := store.Save(q); err != nil {
			return clierr.Validation(err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s Saved query %q\n", okStyle.Render("✓"), q.Name)
		fmt.Fprintf(w, "  Query: %s\n", q.Query)
		fmt.Fprintf(w, "  File:  %s\n", store.Path())
		return nil
	},
}

var queriesDeleteCmd = &cobra.Command{
	Use:               "delete NAME",
	Short:             "Delete a user query",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeQueryNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openQueryStore()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return clierr.Validation(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted query %q\n", okStyle.Render("✓"), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queriesCmd)
	queriesCmd.AddCommand(queriesSaveCmd, queriesDeleteCmd)
	queriesSaveCmd.Flags().StringVar(&queriesResource, "resource", "", "Resource the query applies to (scans, drift, coverage, rules, accounts)")
}

// openQueryStore loads built-in and user queries. Unlike --filter, managing
// queries refuses to work on a corrupt file so it is never overwritten.
func openQueryStore() (*queries.QueryStore, error) {
	store, err := queries.NewQueryStore(queries.UserQueriesFile(configDir()))
	if err != nil {
		return nil, fmt.Errorf("load queries: %w", err)
	}
	return store, nil
}

func writeQueries(w io.Writer, format string, store *queries.QueryStore) error {
	if ok, err := printStructured(w, format, store.List()); ok {
		return err
	}

	section := func(title string, qs []queries.SavedQuery) {
		if len(qs) == 0 {
			return
		}
		fmt.Fprintln(w, headerStyle.Render(title))
		rows := make([][]string, 0, len(qs))
		for _, q := range qs {
			rows = append(rows, []string{q.Name, orDash(q.Resource), q.Description, q.Query})
		}
		fmt.Fprintln(w, renderTable([]string{"NAME", "RESOURCE", "DESCRIPTION", "QUERY"}, rows))
		fmt.Fprintln(w)
	}
	section("BUILT-IN QUERIES", store.ListBuiltin())
	section("YOUR QUERIES", store.ListUser())

	fmt.Fprintln(w, headerStyle.Render("USAGE"))
	fmt.Fprintln(w, "  crpm scans list --filter <name>              Run a saved query")
	fmt.Fprintln(w, "  crpm scans list --filter \"<name> AND region=us-*\"")
	fmt.Fprintln(w, "  crpm queries save <name> <query>")
	return nil
}
