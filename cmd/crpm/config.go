// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/internal/config"
)

var configShowSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change crpm settings",
	Long: `View and change crpm settings stored in ~/.crpm/config.yaml.

Keys:
  api_url          Backend URL
  token            Bearer token (stored with 0600 permissions)
  tenant           Tenant identifier sent as X-Tenant-ID
  default_account  Account used when a command needs one and none is given
  redirect_target  Where to go after connecting an account
  log_dir          Directory for connect run logs
  timeout          Request timeout such as 30s (empty: none)

Examples:
  crpm config view
  crpm config set api_url https://crpm.example.com
  crpm config set token "$CRPM_TOKEN"
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !configShowSecrets {
			cfg = cfg.Redacted()
		}
		w := cmd.OutOrStdout()
		format := outputFormat
		if format == formatTable {
			format = formatYAML
		}
		_, err = printStructured(w, format, cfg)
		return err
	},
}

var configGetCmd = &cobra.Command{
	Use:               "get KEY",
	Short:             "Print one setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeConfigKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		v, err := cfg.Get(args[0])
		if err != nil {
			return clierr.Validation(err)
		}
		if args[0] == "token" && !configShowSecrets {
			v = config.MaskToken(v)
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:               "set KEY VALUE",
	Short:             "Change one setting",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeConfigKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile()
		// Edit the file view only, so environment overrides never get written.
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return clierr.Validation(err)
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		shown := args[1]
		if args[0] == "token" {
			shown = config.MaskToken(shown)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", okStyle.Render("✓"), args[0], shown)
		fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("  File: "+path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configViewCmd, configGetCmd, configSetCmd)
	configCmd.PersistentFlags().BoolVar(&configShowSecrets, "show-secrets", false, "Print the token unmasked")
}
