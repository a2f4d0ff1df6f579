// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/recoveryvault/crpm/internal/onboard"
	"github.com/recoveryvault/crpm/pkg/api"
)

// prompter asks one question at a time. surveyPrompter is the terminal
// implementation; tests script the answers.
type prompter interface {
	Input(message, def string, validate func(string) error) (string, error)
	Password(message string) (string, error)
	Multiline(message string) (string, error)
	Select(message string, options []string, def string) (string, error)
}

// surveyPrompter asks questions on the terminal.
type surveyPrompter struct {
	opts []survey.AskOpt
}

func newSurveyPrompter(in terminal.FileReader, out terminal.FileWriter, errOut io.Writer) surveyPrompter {
	return surveyPrompter{opts: []survey.AskOpt{survey.WithStdio(in, out, errOut)}}
}

func (p surveyPrompter) Input(message, def string, validate func(string) error) (string, error) {
	var answer string
	opts := p.opts
	if validate != nil {
		opts = append(opts[:len(opts):len(opts)], survey.WithValidator(func(ans interface{}) error {
			s, _ := ans.(string)
			return validate(strings.TrimSpace(s))
		}))
	}
	err := survey.AskOne(&survey.Input{Message: message, Default: def}, &answer, opts...)
	return strings.TrimSpace(answer), err
}

func (p surveyPrompter) Password(message string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Password{Message: message}, &answer, p.opts...)
	return answer, err
}

func (p surveyPrompter) Multiline(message string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Multiline{Message: message}, &answer, p.opts...)
	return answer, err
}

func (p surveyPrompter) Select(message string, options []string, def string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Select{Message: message, Options: options, Default: def}, &answer, p.opts...)
	return answer, err
}

func required(label string) func(string) error {
	return func(v string) error {
		if v == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

// Choices offered after a failure.
const (
	choiceRetry        = "Retry"
	choiceEdit         = "Edit credentials"
	choiceEditSchedule = "Edit schedule"
	choiceQuit         = "Quit"
)

// runConnectPrompts drives the wizard with line-by-line prompts. It returns
// cancelled=true when the user quits or interrupts before the account exists.
func runConnectPrompts(ctx context.Context, w io.Writer, ctrl *onboard.Controller, p prompter) (bool, error) {
	s := ctrl.Session()
	for !ctrl.Done() {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		step := ctrl.CurrentStep()
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Step %d of %d: %s", step, onboard.StepCount, step.Title(s.Provider))))
		fmt.Fprintln(w, dimStyle.Render(step.Description(s.Provider)))

		var err error
		quit := false
		switch step {
		case onboard.StepDetails:
			err = promptDetails(p, s)
			if err == nil && !ctrl.Advance() {
				fmt.Fprintln(w, warnStyle.Render(s.IdentifierLabel()+" is required"))
			}
		case onboard.StepCredentials:
			err = promptCredentials(w, p, s)
			if err == nil && !ctrl.Advance() {
				fmt.Fprintln(w, warnStyle.Render("Credentials are required to continue"))
			}
		case onboard.StepTest:
			quit, err = promptTest(ctx, w, p, ctrl)
		case onboard.StepSchedule:
			quit, err = promptSchedule(ctx, w, p, ctrl)
		}

		if errors.Is(err, terminal.InterruptErr) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if quit {
			return true, nil
		}
	}
	return false, nil
}

func promptDetails(p prompter, s *onboard.Session) error {
	var err error
	if s.AccountIdentifier, err = p.Input(s.IdentifierLabel()+":", s.AccountIdentifier, required(s.IdentifierLabel())); err != nil {
		return err
	}
	if s.Provider == api.ProviderGCP {
		s.Credentials.GCP.ProjectNumber, err = p.Input("Project number (optional):", s.Credentials.GCP.ProjectNumber, nil)
		return err
	}
	if s.AccountName, err = p.Input("Account name (optional):", s.AccountName, nil); err != nil {
		return err
	}
	s.PrimaryRegion, err = p.Input("Primary region (optional):", s.PrimaryRegion, nil)
	return err
}

func promptCredentials(w io.Writer, p prompter, s *onboard.Session) error {
	if s.Provider == api.ProviderGCP {
		return promptGCPCredentials(p, s)
	}

	aws := &s.Credentials.AWS
	var err error
	if aws.RoleARN, err = p.Input("IAM role ARN:", aws.RoleARN, required("role ARN")); err != nil {
		return err
	}
	for _, warning := range onboard.RoleARNWarnings(aws.RoleARN, s.AccountIdentifier) {
		fmt.Fprintln(w, warnStyle.Render("! "+warning))
	}
	if aws.ExternalID, err = p.Input("External ID:", aws.ExternalID, nil); err != nil {
		return err
	}
	if aws.AccessKeyID, err = p.Input("Access key ID (optional):", aws.AccessKeyID, nil); err != nil {
		return err
	}
	if aws.AccessKeyID == "" {
		aws.SecretAccessKey = ""
		return nil
	}
	aws.SecretAccessKey, err = p.Password("Secret access key:")
	return err
}

func promptGCPCredentials(p prompter, s *onboard.Session) error {
	gcp := &s.Credentials.GCP
	var err error
	if gcp.ServiceAccountEmail, err = p.Input("Service account email (optional):", gcp.ServiceAccountEmail, nil); err != nil {
		return err
	}
	path, err := p.Input("Key file path (leave empty to paste the JSON):", "", nil)
	if err != nil {
		return err
	}
	if path != "" {
		key, err := readKeyFile(nil, path)
		if err != nil {
			return err
		}
		gcp.KeyJSON = key
		return nil
	}
	key, err := p.Multiline("Paste the service account key JSON (end with an empty line):")
	if err != nil {
		return err
	}
	if strings.TrimSpace(key) != "" {
		gcp.KeyJSON = key
	}
	return nil
}

// promptTest runs the connection test and, after a failure, asks what to do next.
func promptTest(ctx context.Context, w io.Writer, p prompter, ctrl *onboard.Controller) (bool, error) {
	s := ctrl.Session()
	if s.Connection.Status != onboard.StatusSuccess {
		fmt.Fprintf(w, "Testing connection to %s %s...\n", s.Provider.DisplayName(), s.AccountIdentifier)
		if _, ok := ctrl.TestConnection(ctx); !ok {
			return false, fmt.Errorf("connection test could not start from %s", ctrl.State())
		}
		writeConnectionResult(w, s)
	}

	if s.Connection.Status == onboard.StatusSuccess {
		ctrl.Advance()
		return false, nil
	}

	choice, err := p.Select("What next?", []string{choiceRetry, choiceEdit, choiceQuit}, choiceRetry)
	if err != nil {
		return false, err
	}
	switch choice {
	case choiceEdit:
		ctrl.Retreat()
	case choiceQuit:
		return true, nil
	}
	return false, nil
}

// promptSchedule collects the schedule and creates the account.
func promptSchedule(ctx context.Context, w io.Writer, p prompter, ctrl *onboard.Controller) (bool, error) {
	s := ctrl.Session()
	var err error
	if s.Provider == api.ProviderGCP {
		if s.AccountName, err = p.Input("Account name (optional):", s.AccountName, nil); err != nil {
			return false, err
		}
		if s.PrimaryRegion, err = p.Input("Primary region (optional):", s.PrimaryRegion, nil); err != nil {
			return false, err
		}
	}

	freqs := onboard.Frequencies(s.Provider)
	labels := make([]string, 0, len(freqs))
	for _, f := range freqs {
		labels = append(labels, f.Label())
	}
	label, err := p.Select("Discovery frequency:", labels, s.Schedule.Frequency.Label())
	if err != nil {
		return false, err
	}
	if s.Schedule.Frequency, err = onboard.ParseFrequency(label); err != nil {
		return false, err
	}
	if s.Schedule.PreferredTimeUTC, err = p.Input("Preferred time (HH:MM, UTC):", s.Schedule.PreferredTimeUTC, onboard.ValidatePreferredTime); err != nil {
		return false, err
	}

	fmt.Fprintf(w, "Creating account %s...\n", s.DisplayName())
	if err := submitAccount(ctx, ctrl); err != nil {
		fmt.Fprintln(w, dimStyle.Render("  "+err.Error()))
		choice, perr := p.Select("What next?", []string{choiceEditSchedule, choiceQuit}, choiceEditSchedule)
		if perr != nil {
			return false, perr
		}
		return choice == choiceQuit, nil
	}
	return false, nil
}
