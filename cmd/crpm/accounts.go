// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/internal/present"
	"github.com/recoveryvault/crpm/pkg/api"
	"github.com/recoveryvault/crpm/pkg/query"
)

var accountsFilter string

var accountsCmd = &cobra.Command{
	Use:     "accounts",
	Aliases: []string{"account"},
	Short:   "List connected cloud accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected cloud accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := setupClient()
		if err != nil {
			return err
		}
		q, err := loadFilter(cmd.ErrOrStderr(), accountsFilter)
		if err != nil {
			return err
		}
		accounts, err := client.ListAccounts(cmd.Context())
		if err != nil {
			return err
		}
		return writeAccounts(cmd.OutOrStdout(), outputFormat, accounts, q)
	},
}

var accountsGetCmd = &cobra.Command{
	Use:   "get ACCOUNT_ID",
	Short: "Show one connected account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := setupClient()
		if err != nil {
			return err
		}
		account, err := client.GetAccount(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeAccount(cmd.OutOrStdout(), outputFormat, account)
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd, accountsGetCmd)
	accountsListCmd.Flags().StringVarP(&accountsFilter, "filter", "f", "", "Filter accounts (e.g. provider=aws)")
	_ = accountsListCmd.RegisterFlagCompletionFunc("filter", completeQueryNames)
}

func writeAccounts(w io.Writer, format string, accounts []api.Account, q *query.Query) error {
	accounts = query.Filter(q, accounts)
	if ok, err := printStructured(w, format, accounts); ok {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(w, clierr.NothingFound("accounts"))
		fmt.Fprintln(w, dimStyle.Render("\nConnect one with: crpm connect aws  (or crpm connect gcp)"))
		return nil
	}

	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []string{
			a.ID,
			a.Provider.DisplayName(),
			a.AccountIdentifier,
			orDash(a.Name),
			orDash(a.PrimaryRegion),
			present.DisplayStatus(a.ConnectionStatus),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"ID", "PROVIDER", "ACCOUNT", "NAME", "REGION", "STATUS"}, rows))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d accounts  %s", len(accounts), present.CountBy("provider", accounts))))
	return nil
}

func writeAccount(w io.Writer, format string, a *api.AccountDetail) error {
	if ok, err := printStructured(w, format, a); ok {
		return err
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s ACCOUNT %s", a.Provider.DisplayName(), a.AccountIdentifier)))
	pairs := [][2]string{
		{"ID", a.ID},
		{"Name", orDash(a.Name)},
		{"Region", orDash(a.PrimaryRegion)},
		{"Connection", present.DisplayStatus(a.ConnectionStatus)},
		{"Last tested", orDash(a.LastTestedAt)},
	}
	switch a.Provider {
	case api.ProviderAWS:
		pairs = append(pairs,
			[2]string{"Role ARN", orDash(a.AWSRoleARN)},
			[2]string{"External ID", orDash(a.AWSExternalID)})
	case api.ProviderGCP:
		pairs = append(pairs,
			[2]string{"Project number", orDash(a.GCPProjectNumber)},
			[2]string{"Service account", orDash(a.GCPServiceAccountEmail)})
	}
	discovery := "disabled"
	if a.DiscoveryEnabled {
		discovery = fmt.Sprintf("%s at %s UTC", present.DisplayLabel(a.DiscoveryFrequency), orDash(a.PreferredTimeUTC))
	}
	pairs = append(pairs,
		[2]string{"Discovery", discovery},
		[2]string{"Created", orDash(a.CreatedAt)})
	fmt.Fprint(w, renderKV(pairs))
	return nil
}
