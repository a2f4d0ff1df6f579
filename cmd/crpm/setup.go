// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/client-go/util/homedir"

	"github.com/recoveryvault/crpm/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Set up shell completions and configuration",
	Long: `Set up crpm for your environment.

This command installs shell completions so you can use tab completion
for all crpm commands, flags, and arguments, and writes a starter
config file if none exists.

Supported shells: bash, zsh, fish

Examples:
  crpm setup              # Auto-detect shell and install
  crpm setup --shell zsh  # Install for specific shell
  crpm setup --dry-run    # Show what would be installed`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

var (
	setupShell  string
	setupDryRun bool
)

func init() {
	setupCmd.Flags().StringVar(&setupShell, "shell", "", "Shell to configure (bash, zsh, fish). Auto-detects if not specified.")
	setupCmd.Flags().BoolVar(&setupDryRun, "dry-run", false, "Show what would be done without making changes")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	// Detect shell if not specified
	shell := setupShell
	if shell == "" {
		shell = detectShell()
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Setting up crpm for %s...\n\n", shell)

	s := shellSetup{home: homedir.HomeDir(), w: w, dryRun: setupDryRun, root: cmd.Root()}
	var err error
	switch shell {
	case "bash":
		err = s.bash()
	case "zsh":
		err = s.zsh()
	case "fish":
		err = s.fish()
	default:
		return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish)", shell)
	}
	if err != nil {
		return err
	}
	return s.starterConfig(configFile())
}

func detectShell() string {
	// Check SHELL environment variable
	shellPath := os.Getenv("SHELL")
	if shellPath != "" {
		base := filepath.Base(shellPath)
		switch base {
		case "bash", "zsh", "fish":
			return base
		}
	}

	// Default based on OS
	if runtime.GOOS == "darwin" {
		return "zsh" // macOS default since Catalina
	}
	return "bash"
}

// shellSetup installs completions under home.
type shellSetup struct {
	home   string
	w      io.Writer
	dryRun bool
	root   *cobra.Command
}

func (s shellSetup) bash() error {
	rcFile := filepath.Join(s.home, ".bashrc")

	// Check if already configured
	if isAlreadyConfigured(rcFile, "crpm completion bash") {
		fmt.Fprintln(s.w, "✓ Shell completions already configured in ~/.bashrc")
		return nil
	}

	completionLine := `
# crpm completion (added by crpm setup)
source <(crpm completion bash)
`

	if s.dryRun {
		fmt.Fprintln(s.w, "Would add to ~/.bashrc:")
		fmt.Fprintln(s.w, completionLine)
		return nil
	}

	if err := appendToFile(rcFile, completionLine); err != nil {
		return fmt.Errorf("failed to update ~/.bashrc: %w", err)
	}

	fmt.Fprintln(s.w, "✓ Added completion to ~/.bashrc")
	fmt.Fprintln(s.w, "\nRestart your shell or run:")
	fmt.Fprintln(s.w, "  source ~/.bashrc")
	return nil
}

func (s shellSetup) zsh() error {
	compDir := filepath.Join(s.home, ".zsh", "completions")
	compFile := filepath.Join(compDir, "_crpm")
	rcFile := filepath.Join(s.home, ".zshrc")

	if s.dryRun {
		fmt.Fprintf(s.w, "Would create: %s\n", compDir)
		fmt.Fprintf(s.w, "Would write completion to: %s\n", compFile)
		fmt.Fprintln(s.w, "Would add to ~/.zshrc (if not present):")
		fmt.Fprintln(s.w, "  fpath=(~/.zsh/completions $fpath)")
		fmt.Fprintln(s.w, "  autoload -Uz compinit && compinit")
		return nil
	}

	var script bytes.Buffer
	if err := s.root.GenZshCompletion(&script); err != nil {
		return fmt.Errorf("failed to generate completion: %w", err)
	}
	if err := writeCompletion(compDir, compFile, script.Bytes()); err != nil {
		return err
	}
	fmt.Fprintf(s.w, "✓ Wrote completion script to %s\n", compFile)

	// Add fpath to .zshrc if needed
	if !isAlreadyConfigured(rcFile, ".zsh/completions") {
		fpathConfig := `
# crpm completion (added by crpm setup)
fpath=(~/.zsh/completions $fpath)
autoload -Uz compinit && compinit
`
		if err := appendToFile(rcFile, fpathConfig); err != nil {
			return fmt.Errorf("failed to update ~/.zshrc: %w", err)
		}
		fmt.Fprintln(s.w, "✓ Added completion path to ~/.zshrc")
	} else {
		fmt.Fprintln(s.w, "✓ Completion path already in ~/.zshrc")
	}

	fmt.Fprintln(s.w, "\nRestart your shell or run:")
	fmt.Fprintln(s.w, "  source ~/.zshrc")
	return nil
}

func (s shellSetup) fish() error {
	compDir := filepath.Join(s.home, ".config", "fish", "completions")
	compFile := filepath.Join(compDir, "crpm.fish")

	if s.dryRun {
		fmt.Fprintf(s.w, "Would create: %s\n", compDir)
		fmt.Fprintf(s.w, "Would write completion to: %s\n", compFile)
		return nil
	}

	var script bytes.Buffer
	if err := s.root.GenFishCompletion(&script, true); err != nil {
		return fmt.Errorf("failed to generate completion: %w", err)
	}
	if err := writeCompletion(compDir, compFile, script.Bytes()); err != nil {
		return err
	}

	fmt.Fprintf(s.w, "✓ Wrote completion script to %s\n", compFile)
	fmt.Fprintln(s.w, "\nFish will auto-load completions on next shell start.")
	return nil
}

// starterConfig writes the default config file unless one exists.
func (s shellSetup) starterConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(s.w, "✓ Config file already exists: %s\n", path)
		return nil
	}
	if s.dryRun {
		fmt.Fprintf(s.w, "Would write default config to: %s\n", path)
		return nil
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(s.w, "✓ Wrote default config to %s\n", path)
	fmt.Fprintln(s.w, "  Next: crpm config set token <token>")
	return nil
}

func writeCompletion(dir, file string, script []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(file, script, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return nil
}

func isAlreadyConfigured(filename, searchStr string) bool {
	content, err := os.ReadFile(filename)
	if err != nil {
		return false
	}
	return strings.Contains(string(content), searchStr)
}

func appendToFile(filename, content string) error {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}
