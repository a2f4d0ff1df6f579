// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/internal/present"
	"github.com/recoveryvault/crpm/pkg/api"
	"github.com/recoveryvault/crpm/pkg/query"
)

var (
	scansFilter       string
	scansWatchEvery   time.Duration
	scansWatchTimeout time.Duration
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "List, trigger and watch discovery scans",
	Long: `List, trigger and watch discovery scans.

Examples:
  # Show the scan history
  crpm scans list

  # Only failed scans in US regions (saved query names expand)
  crpm scans list --filter "failed-scans AND region=us-*"

  # Start a scan of an account and follow it
  crpm scans trigger 123456789012
  crpm scans watch scan-42
`,
}

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the discovery scan history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := setupClient()
		if err != nil {
			return err
		}
		q, err := loadFilter(cmd.ErrOrStderr(), scansFilter)
		if err != nil {
			return err
		}
		list, err := client.ListScans(cmd.Context())
		if err != nil {
			return err
		}
		return writeScans(cmd.OutOrStdout(), outputFormat, list, q)
	},
}

var scansGetCmd = &cobra.Command{
	Use:   "get SCAN_ID",
	Short: "Show one discovery scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := setupClient()
		if err != nil {
			return err
		}
		scan, err := client.GetScan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeScan(cmd.OutOrStdout(), outputFormat, scan)
	},
}

var scansTriggerCmd = &cobra.Command{
	Use:   "trigger [ACCOUNT_ID]",
	Short: "Start a discovery scan of an account",
	Long: `Start a discovery scan of an account.

ACCOUNT_ID defaults to default_account from the config file.
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := setupClient()
		if err != nil {
			return err
		}
		accountID := cfg.DefaultAccount
		if len(args) == 1 {
			accountID = args[0]
		}
		if accountID == "" {
			return clierr.Validationf("no account given and default_account is not set (crpm config set default_account <id>)")
		}
		resp, err := client.TriggerScan(cmd.Context(), accountID)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if ok, err := printStructured(w, outputFormat, resp); ok {
			return err
		}
		fmt.Fprintln(w, okStyle.Render("✓ Discovery scan triggered for "+accountID))
		fmt.Fprintln(w, dimStyle.Render("Follow it with: crpm scans list --filter running-scans"))
		return nil
	},
}

var scansWatchCmd = &cobra.Command{
	Use:   "watch SCAN_ID",
	Short: "Follow a running scan until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := setupClient()
		if err != nil {
			return err
		}
		scan, err := watchScan(cmd.Context(), cmd.OutOrStdout(), client, args[0], scansWatchEvery, scansWatchTimeout)
		if err != nil {
			return err
		}
		if scan.Status == api.ScanFailed {
			return fmt.Errorf("scan %s failed", scan.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scansCmd)
	scansCmd.AddCommand(scansListCmd, scansGetCmd, scansTriggerCmd, scansWatchCmd)

	scansListCmd.Flags().StringVarP(&scansFilter, "filter", "f", "", "Filter scans (e.g. status=failed, or a saved query name)")
	_ = scansListCmd.RegisterFlagCompletionFunc("filter", completeQueryNames)

	scansWatchCmd.Flags().DurationVar(&scansWatchEvery, "interval", 5*time.Second, "Polling interval")
	scansWatchCmd.Flags().DurationVar(&scansWatchTimeout, "timeout", 30*time.Minute, "Give up after this long")
}

func writeScans(w io.Writer, format string, list *api.ScanList, q *query.Query) error {
	scans := query.Filter(q, list.Scans)
	if ok, err := printStructured(w, format, &api.ScanList{Summary: list.Summary, Scans: scans}); ok {
		return err
	}

	s := list.Summary
	fmt.Fprintf(w, "%s  %d scans  %s success  avg %s  %d resources scanned\n",
		headerStyle.Render("SCANS"),
		s.TotalScans,
		present.FormatPercent(s.SuccessRate),
		present.FormatSeconds(s.AvgDurationSeconds),
		s.ResourcesScanned)

	if len(scans) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, clierr.NothingFound("scans"))
		return nil
	}

	rows := make([][]string, 0, len(scans))
	for _, sc := range scans {
		rows = append(rows, []string{
			sc.ID,
			orDash(sc.AccountName),
			present.DisplayLabel(sc.Type),
			scanStatus(sc),
			orDash(sc.StartTime),
			present.FormatSeconds(float64(sc.DurationSeconds)),
			strconv.Itoa(sc.ResourcesScanned),
			strconv.Itoa(sc.Findings.Total()),
			strconv.Itoa(sc.RecoveryScore),
			present.FormatPercent(sc.BackupCoverage),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "ACCOUNT", "TYPE", "STATUS", "STARTED", "DURATION", "RESOURCES", "FINDINGS", "SCORE", "COVERAGE"},
		rows))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d shown  %s", len(scans), present.CountBy("status", scans))))
	return nil
}

func scanStatus(s api.ScanItem) string {
	status := present.DisplayStatus(s.Status)
	if s.Running() && s.Progress != nil {
		status = fmt.Sprintf("%s %d%%", status, *s.Progress)
	}
	return status
}

func writeScan(w io.Writer, format string, s *api.ScanItem) error {
	if ok, err := printStructured(w, format, s); ok {
		return err
	}
	fmt.Fprintln(w, headerStyle.Render("SCAN "+s.ID))
	pairs := [][2]string{
		{"Account", fmt.Sprintf("%s (%s)", orDash(s.AccountName), orDash(s.AccountID))},
		{"Type", present.DisplayLabel(s.Type)},
		{"Status", scanStatus(*s)},
		{"Triggered by", present.DisplayLabel(s.TriggeredBy)},
		{"Region", orDash(s.Region)},
		{"Started", orDash(s.StartTime)},
		{"Ended", orDash(s.EndTime)},
		{"Duration", present.FormatSeconds(float64(s.DurationSeconds))},
		{"Resources", fmt.Sprintf("%d scanned, %d with backups (%s)",
			s.ResourcesScanned, s.ResourcesWithBackups,
			present.FormatPercent(present.Percent(s.ResourcesWithBackups, s.ResourcesScanned)))},
		{"Findings", fmt.Sprintf("%d critical, %d high, %d medium, %d low",
			s.Findings.Critical, s.Findings.High, s.Findings.Medium, s.Findings.Low)},
		{"Recovery score", strconv.Itoa(s.RecoveryScore)},
		{"Backup coverage", present.FormatPercent(s.BackupCoverage)},
	}
	if s.AttachmentURL != "" {
		pairs = append(pairs, [2]string{"Report", s.AttachmentURL})
	}
	fmt.Fprint(w, renderKV(pairs))
	return nil
}

// watchScan polls a scan until it leaves the running state, printing each change.
func watchScan(ctx context.Context, w io.Writer, client *api.Client, id string, interval, timeout time.Duration) (*api.ScanItem, error) {
	var (
		last       *api.ScanItem
		lastStatus string
	)
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		scan, err := client.GetScan(ctx, id)
		if err != nil {
			return false, err
		}
		last = scan
		if status := scanStatus(*scan); status != lastStatus {
			fmt.Fprintf(w, "%s  %s  %d resources\n", time.Now().Format("15:04:05"), status, scan.ResourcesScanned)
			lastStatus = status
		}
		return !scan.Running(), nil
	})
	if err != nil {
		if wait.Interrupted(err) && ctx.Err() == nil {
			return last, fmt.Errorf("scan %s still running after %s", id, timeout)
		}
		return last, err
	}
	if last.Status == api.ScanFailed || last.Status == api.ScanCancelled {
		fmt.Fprintln(w, errStyle.Render("✗ Scan "+present.DisplayStatus(last.Status)))
	} else {
		fmt.Fprintln(w, okStyle.Render("✓ Scan "+present.DisplayStatus(last.Status)))
	}
	return last, nil
}
