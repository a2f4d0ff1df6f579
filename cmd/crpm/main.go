// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Command crpm connects cloud accounts to Cloud Recovery Posture Management
// and reads their recovery posture from the terminal.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/internal/config"
	"github.com/recoveryvault/crpm/pkg/api"
)

var (
	// BuildTag is set during build
	BuildTag = "dev"
	// BuildDate is set during build
	BuildDate = "unknown"
)

// Global flags
var (
	configPath   string
	apiURLFlag   string
	tenantFlag   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "crpm",
	Short: "Connect cloud accounts and inspect recovery posture",
	Long: `crpm - Cloud Recovery Posture Management from your terminal

crpm talks to the CRPM backend. It provides commands for:

  - Connecting AWS accounts and GCP projects (interactive wizard or scripted)
  - Listing discovery scans, triggering and watching them
  - Inspecting configuration drift and backup coverage
  - Browsing compliance rules and frameworks

Configuration lives in ~/.crpm/config.yaml (see crpm config view).

Environment Variables:
  CRPM_API_URL            Backend URL (default: http://localhost:8000)
  CRPM_TOKEN              Bearer token for the backend
  CRPM_TENANT             Tenant identifier sent as X-Tenant-ID
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateOutputFormat(outputFormat)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, clierr.Pretty(err))
		os.Exit(1)
	}
}

func init() {
	api.UserAgent = "crpm/" + BuildTag

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.crpm/config.yaml)")
	pf.StringVar(&apiURLFlag, "api-url", "", "Backend URL, overrides config and CRPM_API_URL")
	pf.StringVar(&tenantFlag, "tenant", "", "Tenant identifier, overrides config and CRPM_TENANT")
	pf.StringVarP(&outputFormat, "output", "o", formatTable, "Output format: table, json, yaml")
	_ = rootCmd.RegisterFlagCompletionFunc("output", completeOutputFormats)

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crpm version %s (built %s)\n", BuildTag, BuildDate)
		},
	})

	// Add completion command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for crpm.

Bash:
  $ source <(crpm completion bash)
  # Or add to ~/.bashrc:
  $ crpm completion bash >> ~/.bashrc

Zsh:
  $ source <(crpm completion zsh)
  # Or install to fpath:
  $ crpm completion zsh > "${fpath[1]}/_crpm"

Fish:
  $ crpm completion fish | source
  # Or install:
  $ crpm completion fish > ~/.config/fish/completions/crpm.fish

PowerShell:
  PS> crpm completion powershell | Out-String | Invoke-Expression
`,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	})
}

// configFile returns the config file in use.
func configFile() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// configDir is where the config file and saved queries live.
func configDir() string {
	return filepath.Dir(configFile())
}

// loadConfig reads the config file, then environment, then command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile())
	if err != nil {
		return nil, err
	}
	if apiURLFlag != "" {
		cfg.APIURL = apiURLFlag
	}
	if tenantFlag != "" {
		cfg.Tenant = tenantFlag
	}
	return cfg, nil
}

// newClient builds the backend client for cfg.
func newClient(cfg *config.Config, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.APIURL,
		api.WithAuth(cfg.Auth()),
		api.WithTimeout(cfg.TimeoutDuration()),
		api.WithLogger(logger),
	)
}

// setupClient is loadConfig followed by newClient, for the read commands.
func setupClient() (*config.Config, *api.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, newClient(cfg, zap.NewNop()), nil
}
