// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/recoveryvault/crpm/internal/config"
	"github.com/recoveryvault/crpm/pkg/api"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend connection status",
	Long: `Show which backend crpm talks to and whether it answers.

Displays:
  - Backend URL and tenant
  - Whether a token is configured (masked)
  - Backend health from /healthz

Examples:
  crpm status
  crpm status -o json
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := setupClient()
		if err != nil {
			return err
		}
		return writeStatus(cmd.OutOrStdout(), outputFormat, checkStatus(cmd.Context(), cfg, client))
	},
}

// StatusInfo holds status information for display
type StatusInfo struct {
	APIURL        string `json:"api_url"`
	Tenant        string `json:"tenant,omitempty"`
	Authenticated bool   `json:"authenticated"`
	Token         string `json:"token,omitempty"` // masked
	ConfigFile    string `json:"config_file"`
	Reachable     bool   `json:"reachable"`
	Health        string `json:"health,omitempty"`
	Error         string `json:"error,omitempty"`
}

func checkStatus(ctx context.Context, cfg *config.Config, client *api.Client) StatusInfo {
	info := StatusInfo{
		APIURL:        client.BaseURL(),
		Tenant:        cfg.Tenant,
		Authenticated: client.Authenticated(),
		Token:         config.MaskToken(cfg.Token),
		ConfigFile:    configFile(),
	}
	health, err := client.Health(ctx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Reachable = true
	info.Health = health
	return info
}

func writeStatus(w io.Writer, format string, info StatusInfo) error {
	if ok, err := printStructured(w, format, info); ok {
		return err
	}

	backend := okStyle.Render("● reachable") + dimStyle.Render(" ("+info.Health+")")
	if !info.Reachable {
		backend = errStyle.Render("○ unreachable")
	}
	auth := warnStyle.Render("no token") + dimStyle.Render(" (crpm config set token <token>)")
	if info.Authenticated {
		auth = okStyle.Render("token ") + info.Token
	}

	fmt.Fprintln(w, headerStyle.Render("CRPM STATUS"))
	fmt.Fprint(w, renderKV([][2]string{
		{"Backend", info.APIURL},
		{"Health", backend},
		{"Tenant", orDash(info.Tenant)},
		{"Auth", auth},
		{"Config", info.ConfigFile},
	}))
	if info.Error != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, dimStyle.Render(info.Error))
	}
	return nil
}
