// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recoveryvault/crpm/internal/clierr"
	"github.com/recoveryvault/crpm/internal/config"
	"github.com/recoveryvault/crpm/internal/logging"
	"github.com/recoveryvault/crpm/internal/onboard"
	"github.com/recoveryvault/crpm/internal/present"
	"github.com/recoveryvault/crpm/pkg/api"
)

var (
	connectPlain          bool
	connectNonInteractive bool

	connectAccount   string
	connectName      string
	connectRegion    string
	connectFrequency string
	connectTime      string
	connectRedirect  string

	connectRoleARN     string
	connectExternalID  string
	connectAccessKeyID string
	connectSecretKey   string

	connectProjectNumber string
	connectSAEmail       string
	connectKeyFile       string

	connectPrintTemplate string
	connectRoleName      string
	connectPrincipalARN  string
)

var connectCmd = &cobra.Command{
	Use:   "connect aws|gcp",
	Short: "Connect an AWS account or GCP project",
	Long: `Connect a cloud account to CRPM.

The wizard walks through four steps:
  1. Account details (AWS account ID, or GCP project ID)
  2. Credentials (IAM role ARN, or service account key JSON)
  3. Connection test against the backend
  4. Discovery schedule, then the account is created

Nothing is saved until step 4 succeeds. After that crpm shows the
discovery history so you can follow the first scan.

Modes:
  (default)           Full-screen wizard
  --plain             Line-by-line prompts, for simple terminals and screen readers
  --non-interactive   Everything from flags, for scripts and CI

Examples:
  # Interactive wizard
  crpm connect aws
  crpm connect gcp

  # Print the CloudFormation template for the discovery role
  crpm connect aws --print-template yaml > role.yaml

  # Scripted AWS onboarding
  crpm connect aws --non-interactive \
    --account 123456789012 --name Production --region us-east-1 \
    --role-arn arn:aws:iam::123456789012:role/RecoveryVault-DiscoveryRole

  # Scripted GCP onboarding with the key on stdin
  cat key.json | crpm connect gcp --non-interactive \
    --account my-project --sa-email crpm@my-project.iam.gserviceaccount.com \
    --key-file - --frequency weekly
`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProviders,
	RunE:              runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)

	f := connectCmd.Flags()
	f.BoolVar(&connectPlain, "plain", false, "Use line-by-line prompts instead of the full-screen wizard")
	f.BoolVar(&connectNonInteractive, "non-interactive", false, "Take every value from flags and never prompt")

	f.StringVar(&connectAccount, "account", "", "AWS account ID or GCP project ID")
	f.StringVar(&connectName, "name", "", "Account display name (default: the account ID)")
	f.StringVar(&connectRegion, "region", "", "Primary region")
	f.StringVar(&connectFrequency, "frequency", "", "Discovery frequency (default: every_6_hours for AWS, daily for GCP)")
	f.StringVar(&connectTime, "time", onboard.DefaultPreferredTime, "Preferred discovery time, HH:MM UTC")
	f.StringVar(&connectRedirect, "redirect", "", "Where to go after the account is created (default from config)")

	f.StringVar(&connectRoleARN, "role-arn", "", "AWS: ARN of the discovery role")
	f.StringVar(&connectExternalID, "external-id", onboard.DefaultExternalID, "AWS: external ID required by the role trust policy")
	f.StringVar(&connectAccessKeyID, "access-key-id", "", "AWS: access key ID used to assume the role (optional)")
	f.StringVar(&connectSecretKey, "secret-access-key", "", "AWS: secret access key (default $AWS_SECRET_ACCESS_KEY)")

	f.StringVar(&connectProjectNumber, "project-number", "", "GCP: numeric project number")
	f.StringVar(&connectSAEmail, "sa-email", "", "GCP: service account email")
	f.StringVar(&connectKeyFile, "key-file", "", "GCP: service account key JSON file, - for stdin")

	f.StringVar(&connectPrintTemplate, "print-template", "", "AWS: print the discovery role CloudFormation template (json or yaml) and exit")
	f.StringVar(&connectRoleName, "role-name", onboard.DefaultRoleName, "AWS: role name used by --print-template")
	f.StringVar(&connectPrincipalARN, "principal-arn", onboard.DefaultPrincipalARN, "AWS: principal trusted by the role in --print-template")

	connectCmd.MarkFlagsMutuallyExclusive("plain", "non-interactive")
	_ = connectCmd.RegisterFlagCompletionFunc("frequency", completeFrequencies)
	_ = connectCmd.RegisterFlagCompletionFunc("print-template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return filterPrefix([]string{"json", "yaml"}, toComplete), cobra.ShellCompDirectiveNoFileComp
	})
}

func runConnect(cmd *cobra.Command, args []string) error {
	provider, err := api.ParseProvider(args[0])
	if err != nil {
		return clierr.Validation(err)
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if connectPrintTemplate != "" {
		return printRoleTemplate(out, provider)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	session, err := sessionFromFlags(cmd.InOrStdin(), provider)
	if err != nil {
		return err
	}

	mode := connectMode()
	if mode == "" {
		return clierr.Validationf("stdin is not a terminal; pass --non-interactive with the account flags")
	}

	runLog, err := logging.NewRunLogger(cfg.LogDir, "connect-"+string(provider),
		zap.String("session", session.ID),
		zap.String("mode", mode))
	if err != nil {
		fmt.Fprintln(errOut, warnStyle.Render("Run log disabled: "+err.Error()))
	}
	logger := runLog.Logger()
	runLog.Log("backend", zap.String("api_url", cfg.APIURL), zap.String("tenant", cfg.Tenant))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client := newClient(cfg, logger)
	nav := &terminalNavigator{}

	var cancelled bool
	var ctrl *onboard.Controller
	switch mode {
	case "tui":
		toasts := &toastNotifier{}
		ctrl = newConnectController(cfg, client, session, toasts, nav, logger)
		var final ConnectWizardModel
		final, err = RunConnectWizard(ctx, ctrl, toasts)
		cancelled = err == nil && !ctrl.Done() && final.Cancelled()
	case "plain":
		ctrl = newConnectController(cfg, client, session, printNotifier{w: out}, nav, logger)
		runLog.Section("prompts")
		cancelled, err = runConnectPrompts(ctx, out, ctrl, newSurveyPrompter(os.Stdin, os.Stdout, errOut))
	default:
		ctrl = newConnectController(cfg, client, session, printNotifier{w: out}, nav, logger)
		runLog.Section("non-interactive")
		err = runConnectScripted(ctx, out, errOut, ctrl)
	}

	runLog.Result(err,
		zap.String("state", ctrl.State()),
		zap.String("connection", session.Connection.Status.String()),
		zap.Bool("cancelled", cancelled))
	if path := runLog.Close(); path != "" {
		fmt.Fprintln(errOut, dimStyle.Render("Log: "+path))
	}

	if err != nil {
		return err
	}
	if cancelled || !ctrl.Done() {
		fmt.Fprintln(out, "Onboarding cancelled; nothing was saved.")
		return nil
	}
	return followRedirect(ctx, out, client, nav.Target())
}

// connectMode picks the front-end: "tui", "plain", "script", or "" when
// prompting is needed but stdin is not a terminal.
func connectMode() string {
	if connectNonInteractive {
		return "script"
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return ""
	}
	if connectPlain {
		return "plain"
	}
	return "tui"
}

func newConnectController(cfg *config.Config, client *api.Client, session *onboard.Session, notifier onboard.Notifier, nav onboard.Navigator, logger *zap.Logger) *onboard.Controller {
	redirect := connectRedirect
	if redirect == "" {
		redirect = cfg.RedirectTarget
	}
	validator := onboard.NewValidator(client, logger)
	registrar := onboard.NewRegistrar(client, notifier, nav, redirect, logger)
	return onboard.NewController(session, validator, registrar, logger)
}

func printRoleTemplate(w io.Writer, provider api.Provider) error {
	if provider != api.ProviderAWS {
		return clierr.Validationf("--print-template is only available for aws")
	}
	tmpl, err := onboard.RoleTemplate(onboard.RoleTemplateOptions{
		RoleName:     connectRoleName,
		PrincipalARN: connectPrincipalARN,
		ExternalID:   connectExternalID,
	}, connectPrintTemplate)
	if err != nil {
		return clierr.Validation(err)
	}
	if _, err := w.Write(tmpl); err != nil {
		return err
	}
	if !strings.HasSuffix(string(tmpl), "\n") {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

// sessionFromFlags starts a session prefilled from the command line.
func sessionFromFlags(stdin io.Reader, provider api.Provider) (*onboard.Session, error) {
	s := onboard.NewSession(provider)
	s.AccountIdentifier = strings.TrimSpace(connectAccount)
	s.AccountName = strings.TrimSpace(connectName)
	s.PrimaryRegion = strings.TrimSpace(connectRegion)
	s.Schedule.PreferredTimeUTC = strings.TrimSpace(connectTime)

	if connectFrequency != "" {
		f, err := onboard.ParseFrequency(connectFrequency)
		if err != nil {
			return nil, clierr.Validation(err)
		}
		s.Schedule.Frequency = f
	}

	switch provider {
	case api.ProviderAWS:
		s.Credentials.AWS = onboard.AWSCredentials{
			RoleARN:         strings.TrimSpace(connectRoleARN),
			ExternalID:      strings.TrimSpace(connectExternalID),
			AccessKeyID:     strings.TrimSpace(connectAccessKeyID),
			SecretAccessKey: connectSecretKey,
		}
		if s.Credentials.AWS.AccessKeyID != "" && s.Credentials.AWS.SecretAccessKey == "" {
			s.Credentials.AWS.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		}
	case api.ProviderGCP:
		key, err := readKeyFile(stdin, connectKeyFile)
		if err != nil {
			return nil, err
		}
		s.Credentials.GCP = onboard.GCPCredentials{
			ProjectNumber:       strings.TrimSpace(connectProjectNumber),
			ServiceAccountEmail: strings.TrimSpace(connectSAEmail),
			KeyJSON:             key,
		}
	}
	return s, nil
}

// readKeyFile returns the key text from path, or from stdin for "-".
func readKeyFile(stdin io.Reader, path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read key from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", clierr.Validation(fmt.Errorf("read key file: %w", err))
	}
	return string(data), nil
}

// runConnectScripted runs the whole wizard from the flags, stopping at the
// first failure.
func runConnectScripted(ctx context.Context, w, errW io.Writer, ctrl *onboard.Controller) error {
	s := ctrl.Session()
	if err := s.Validate(); err != nil {
		return clierr.Validation(err)
	}
	if s.Provider == api.ProviderAWS {
		for _, warning := range onboard.RoleARNWarnings(s.Credentials.AWS.RoleARN, s.AccountIdentifier) {
			fmt.Fprintln(errW, warnStyle.Render("warning: "+warning))
		}
	}

	if !ctrl.Advance() || !ctrl.Advance() {
		return fmt.Errorf("cannot reach the connection test from %s", ctrl.State())
	}

	fmt.Fprintf(w, "Testing connection to %s %s...\n", s.Provider.DisplayName(), s.AccountIdentifier)
	r, ok := ctrl.TestConnection(ctx)
	if !ok {
		return fmt.Errorf("connection test could not start from %s", ctrl.State())
	}
	writeConnectionResult(w, s)
	if r.Status != onboard.StatusSuccess {
		return connectionTestError(s, r)
	}

	if !ctrl.Advance() {
		return fmt.Errorf("cannot reach the schedule step from %s", ctrl.State())
	}
	fmt.Fprintf(w, "Creating account %s (discovery %s at %s UTC)...\n",
		s.DisplayName(), strings.ToLower(s.Schedule.Frequency.Label()), s.Schedule.PreferredTimeUTC)
	return submitAccount(ctx, ctrl)
}

// submitAccount creates the account and returns the backend error on failure.
// The registrar prints the notification either way.
func submitAccount(ctx context.Context, ctrl *onboard.Controller) error {
	payload, err := ctrl.BeginSubmit()
	if err != nil {
		var keyErr *onboard.KeyError
		if errors.As(err, &keyErr) {
			return clierr.Validation(errors.New(keyErr.Display()))
		}
		return err
	}
	outcome := ctrl.Registrar().Create(ctx, payload)
	if res := ctrl.CompleteSubmit(outcome); !res.OK {
		return outcome.Err
	}
	return nil
}

// connectionTestError turns a failed test into the command's error.
func connectionTestError(s *onboard.Session, r onboard.Result) error {
	if r.Err != nil && s.Connection.JSONError == "" {
		return fmt.Errorf("connection test failed: %w", r.Err)
	}
	reason := connectionFailureReason(s)
	if reason == "" {
		reason = "the backend rejected the credentials"
	}
	err := fmt.Errorf("connection test failed: %s", reason)
	if s.Connection.JSONError != "" {
		return clierr.WrapWithHint(clierr.Validation(err), "Use the JSON key file downloaded from the GCP console (IAM > Service Accounts > Keys)")
	}
	return err
}

// writeConnectionResult prints the outcome of the last test with its details.
func writeConnectionResult(w io.Writer, s *onboard.Session) {
	switch s.Connection.Status {
	case onboard.StatusSuccess:
		fmt.Fprintln(w, okStyle.Render("✓ Connection successful"))
	case onboard.StatusError:
		fmt.Fprintln(w, errStyle.Render("✗ Connection failed"))
		if reason := connectionFailureReason(s); reason != "" {
			fmt.Fprintln(w, errStyle.Render("  "+reason))
		}
	default:
		return
	}
	if details := renderConnectionDetails(s); details != "" {
		fmt.Fprintln(w, strings.TrimPrefix(details, "\n"))
	}
}

// detailFallback supplies the values the user typed for keys the backend may omit.
func detailFallback(s *onboard.Session) map[string]string {
	if s.Provider != api.ProviderGCP {
		return nil
	}
	return map[string]string{
		"project_id":      s.AccountIdentifier,
		"service_account": s.Credentials.GCP.ServiceAccountEmail,
	}
}

// renderConnectionDetails renders the details of the last test, preceded by a
// blank line, or "" when there are none.
func renderConnectionDetails(s *onboard.Session) string {
	lines := present.DetailLines(s.Connection.Details, detailFallback(s))
	if len(lines) == 0 {
		return ""
	}
	pairs := make([][2]string, 0, len(lines))
	for _, l := range lines {
		pairs = append(pairs, [2]string{l.Label, l.Value})
	}
	return "\n\n" + strings.TrimRight(renderKV(pairs), "\n")
}

// connectionFailureReason is the one line shown under a failed test.
func connectionFailureReason(s *onboard.Session) string {
	c := s.Connection
	switch {
	case c.JSONError != "":
		return c.JSONError
	case c.Message != "":
		return c.Message
	}
	return present.DetailMessage(c.Details)
}
