// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/recoveryvault/crpm/internal/onboard"
	"github.com/recoveryvault/crpm/pkg/api"
)

// fieldKey names one input of the connect wizard.
type fieldKey int

const (
	fieldAccountID fieldKey = iota
	fieldAccountName
	fieldRegion
	fieldRoleARN
	fieldExternalID
	fieldAccessKeyID
	fieldSecretKey
	fieldProjectNumber
	fieldSAEmail
	fieldKeyJSON
	fieldFrequency
	fieldPreferredTime
)

var fieldLabels = map[fieldKey]string{
	fieldAccountID:     "AWS Account ID",
	fieldAccountName:   "Account Name",
	fieldRegion:        "Primary Region",
	fieldRoleARN:       "IAM Role ARN",
	fieldExternalID:    "External ID",
	fieldAccessKeyID:   "Access Key ID (optional)",
	fieldSecretKey:     "Secret Access Key (optional)",
	fieldProjectNumber: "Project Number",
	fieldSAEmail:       "Service Account Email",
	fieldKeyJSON:       "Service Account Key (JSON)",
	fieldFrequency:     "Discovery Frequency",
	fieldPreferredTime: "Preferred Time (UTC)",
}

// stepFields lists the inputs shown on step s for provider p, in focus order.
// GCP asks for the account name and region on the last step, AWS on the first.
func stepFields(p api.Provider, s onboard.Step) []fieldKey {
	if p == api.ProviderGCP {
		switch s {
		case onboard.StepDetails:
			return []fieldKey{fieldAccountID, fieldProjectNumber}
		case onboard.StepCredentials:
			return []fieldKey{fieldSAEmail, fieldKeyJSON}
		case onboard.StepSchedule:
			return []fieldKey{fieldAccountName, fieldRegion, fieldFrequency, fieldPreferredTime}
		}
		return nil
	}
	switch s {
	case onboard.StepDetails:
		return []fieldKey{fieldAccountID, fieldAccountName, fieldRegion}
	case onboard.StepCredentials:
		return []fieldKey{fieldRoleARN, fieldExternalID, fieldAccessKeyID, fieldSecretKey}
	case onboard.StepSchedule:
		return []fieldKey{fieldFrequency, fieldPreferredTime}
	}
	return nil
}

// Connect wizard styles
var (
	wizardTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Background(lipgloss.Color("236")).
				Padding(0, 1).
				MarginBottom(1)

	wizardProgressStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	wizardProgressBarFull = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82"))

	wizardProgressBarEmpty = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	wizardLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	wizardFocusedLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("212")).
				Bold(true)

	wizardPaneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	wizardHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	wizardErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	wizardSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82"))

	wizardWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// Message types for the connect wizard
type connectionTestedMsg struct {
	result onboard.Result
}

type accountCreatedMsg struct {
	outcome onboard.Outcome
}

// ConnectWizardModel is the bubbletea model for the connect wizard.
// All session edits and controller calls happen in Update; only the
// backend requests run in commands.
type ConnectWizardModel struct {
	ctrl   *onboard.Controller
	ctx    context.Context
	toasts *toastNotifier

	inputs  map[fieldKey]*textinput.Model
	keyArea *textarea.Model
	focus   int

	spinner spinner.Model
	hint    string
	width   int
	height  int

	cancelled bool
}

// NewConnectWizardModel creates the wizard for ctrl. Inputs start from the
// session's current values so flags can prefill them.
func NewConnectWizardModel(ctx context.Context, ctrl *onboard.Controller, toasts *toastNotifier) ConnectWizardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	sess := ctrl.Session()
	inputs := map[fieldKey]*textinput.Model{
		fieldAccountID:     newWizardInput(accountIDPlaceholder(sess.Provider), sess.AccountIdentifier),
		fieldAccountName:   newWizardInput("Production", sess.AccountName),
		fieldRegion:        newWizardInput(regionPlaceholder(sess.Provider), sess.PrimaryRegion),
		fieldRoleARN:       newWizardInput("arn:aws:iam::123456789012:role/RecoveryVault-DiscoveryRole", sess.Credentials.AWS.RoleARN),
		fieldExternalID:    newWizardInput(onboard.DefaultExternalID, sess.Credentials.AWS.ExternalID),
		fieldAccessKeyID:   newWizardInput("AKIA...", sess.Credentials.AWS.AccessKeyID),
		fieldSecretKey:     newWizardInput("", sess.Credentials.AWS.SecretAccessKey),
		fieldProjectNumber: newWizardInput("123456789012", sess.Credentials.GCP.ProjectNumber),
		fieldSAEmail:       newWizardInput("crpm@my-project.iam.gserviceaccount.com", sess.Credentials.GCP.ServiceAccountEmail),
		fieldPreferredTime: newWizardInput("02:00", sess.Schedule.PreferredTimeUTC),
	}
	secret := inputs[fieldSecretKey]
	secret.EchoMode = textinput.EchoPassword
	secret.EchoCharacter = '•'
	inputs[fieldPreferredTime].CharLimit = len("15:04")

	ta := textarea.New()
	ta.Placeholder = `{"type": "service_account", "project_id": "...", ...}`
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(64)
	ta.SetHeight(6)
	ta.SetValue(sess.Credentials.GCP.KeyJSON)

	m := ConnectWizardModel{
		ctrl:    ctrl,
		ctx:     ctx,
		toasts:  toasts,
		inputs:  inputs,
		keyArea: &ta,
		spinner: s,
	}
	m.applyFocus()
	return m
}

func newWizardInput(placeholder, value string) *textinput.Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Width = 56
	ti.SetValue(value)
	return &ti
}

func accountIDPlaceholder(p api.Provider) string {
	if p == api.ProviderGCP {
		return "my-gcp-project"
	}
	return "123456789012"
}

func regionPlaceholder(p api.Provider) string {
	if p == api.ProviderGCP {
		return "us-central1"
	}
	return "us-east-1"
}

// Init starts the cursor blinking.
func (m ConnectWizardModel) Init() tea.Cmd {
	return textinput.Blink
}

// Cancelled reports whether the user left before the account was created.
func (m ConnectWizardModel) Cancelled() bool {
	return m.cancelled
}

// Update handles messages
func (m ConnectWizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if msg.Width > 8 {
			m.keyArea.SetWidth(min(msg.Width-8, 96))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectionTestedMsg:
		m.ctrl.CompleteTest(msg.result)
		return m, nil

	case accountCreatedMsg:
		m.ctrl.CompleteSubmit(msg.outcome)
		if m.ctrl.Done() {
			return m, tea.Quit
		}
		if msg.outcome.Err != nil {
			m.hint = msg.outcome.Err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, m.updateFocused(msg)
}

func (m ConnectWizardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.cancelled = true
		return m, tea.Quit
	}
	// Nothing else is accepted while a request is in flight.
	if m.ctrl.Busy() || m.ctrl.Done() {
		return m, nil
	}

	m.hint = ""
	if msg.String() != "enter" {
		m.toasts.Clear()
	}

	step := m.ctrl.CurrentStep()
	switch msg.String() {
	case "esc":
		if m.ctrl.Retreat() {
			return m, m.applyFocus()
		}
		if step == onboard.StepDetails {
			m.cancelled = true
			return m, tea.Quit
		}
		return m, nil

	case "tab":
		return m, m.moveFocus(1)

	case "shift+tab":
		return m, m.moveFocus(-1)

	case "enter":
		return m.handleEnter()
	}

	if step == onboard.StepTest {
		if msg.String() == "r" || msg.String() == "t" {
			return m.startTest()
		}
		return m, nil
	}

	if m.focusedField() == fieldFrequency {
		switch msg.String() {
		case "left", "h":
			m.ctrl.Session().Schedule.Cycle(m.ctrl.Session().Provider, -1)
		case "right", "l", " ":
			m.ctrl.Session().Schedule.Cycle(m.ctrl.Session().Provider, 1)
		}
		return m, nil
	}

	cmd := m.updateFocused(msg)
	m.syncSession()
	return m, cmd
}

// handleEnter continues to the next step, tests on step 3 and submits on step 4.
func (m ConnectWizardModel) handleEnter() (tea.Model, tea.Cmd) {
	m.toasts.Clear()
	switch m.ctrl.CurrentStep() {
	case onboard.StepTest:
		if m.ctrl.Session().Connection.Status == onboard.StatusSuccess && m.ctrl.Advance() {
			return m, m.applyFocus()
		}
		return m.startTest()

	case onboard.StepSchedule:
		return m.startSubmit()
	}

	if m.ctrl.Advance() {
		return m, m.applyFocus()
	}
	m.hint = m.blockedHint()
	return m, nil
}

func (m ConnectWizardModel) startTest() (tea.Model, tea.Cmd) {
	attempt, ok := m.ctrl.BeginTest()
	if !ok {
		return m, nil
	}
	ctx, validator := m.ctx, m.ctrl.Validator()
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return connectionTestedMsg{result: validator.Validate(ctx, attempt)}
	})
}

func (m ConnectWizardModel) startSubmit() (tea.Model, tea.Cmd) {
	payload, err := m.ctrl.BeginSubmit()
	if err != nil {
		m.hint = m.blockedHint()
		if m.hint == "" {
			m.hint = err.Error()
		}
		return m, nil
	}
	ctx, registrar := m.ctx, m.ctrl.Registrar()
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return accountCreatedMsg{outcome: registrar.Create(ctx, payload)}
	})
}

// blockedHint explains why the current step cannot be left.
func (m ConnectWizardModel) blockedHint() string {
	s := m.ctrl.Session()
	switch m.ctrl.CurrentStep() {
	case onboard.StepDetails:
		if !s.HasIdentifier() {
			return s.IdentifierLabel() + " is required"
		}
	case onboard.StepCredentials:
		if !s.HasCredentialMaterial() {
			if s.Provider == api.ProviderGCP {
				return "Paste the service account key JSON to continue"
			}
			return "IAM Role ARN is required"
		}
	case onboard.StepSchedule:
		if err := s.Schedule.Validate(s.Provider); err != nil {
			return err.Error()
		}
	}
	return ""
}

func (m ConnectWizardModel) fields() []fieldKey {
	return stepFields(m.ctrl.Session().Provider, m.ctrl.CurrentStep())
}

func (m ConnectWizardModel) focusedField() fieldKey {
	fields := m.fields()
	if len(fields) == 0 {
		return -1
	}
	return fields[m.focus%len(fields)]
}

func (m *ConnectWizardModel) moveFocus(delta int) tea.Cmd {
	n := len(m.fields())
	if n == 0 {
		return nil
	}
	m.focus = ((m.focus+delta)%n + n) % n
	return m.focusCurrent()
}

// applyFocus puts focus on the first field of the current step.
func (m *ConnectWizardModel) applyFocus() tea.Cmd {
	m.focus = 0
	return m.focusCurrent()
}

func (m *ConnectWizardModel) focusCurrent() tea.Cmd {
	for _, ti := range m.inputs {
		ti.Blur()
	}
	m.keyArea.Blur()

	switch k := m.focusedField(); k {
	case fieldKeyJSON:
		return m.keyArea.Focus()
	case fieldFrequency, -1:
		return nil
	default:
		return m.inputs[k].Focus()
	}
}

func (m *ConnectWizardModel) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch k := m.focusedField(); k {
	case fieldKeyJSON:
		*m.keyArea, cmd = m.keyArea.Update(msg)
	case fieldFrequency, -1:
	default:
		ti := m.inputs[k]
		*ti, cmd = ti.Update(msg)
	}
	return cmd
}

func (m ConnectWizardModel) value(k fieldKey) string {
	return strings.TrimSpace(m.inputs[k].Value())
}

// syncSession copies every input into the session.
func (m ConnectWizardModel) syncSession() {
	s := m.ctrl.Session()
	s.AccountIdentifier = m.value(fieldAccountID)
	s.AccountName = m.value(fieldAccountName)
	s.PrimaryRegion = m.value(fieldRegion)
	s.Schedule.PreferredTimeUTC = m.value(fieldPreferredTime)

	switch s.Provider {
	case api.ProviderAWS:
		s.Credentials.AWS.RoleARN = m.value(fieldRoleARN)
		s.Credentials.AWS.ExternalID = m.value(fieldExternalID)
		s.Credentials.AWS.AccessKeyID = m.value(fieldAccessKeyID)
		s.Credentials.AWS.SecretAccessKey = m.inputs[fieldSecretKey].Value()
	case api.ProviderGCP:
		s.Credentials.GCP.ProjectNumber = m.value(fieldProjectNumber)
		s.Credentials.GCP.ServiceAccountEmail = m.value(fieldSAEmail)
		s.Credentials.GCP.KeyJSON = m.keyArea.Value()
	}
}

// View renders the wizard
func (m ConnectWizardModel) View() string {
	if m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.ctrl.Done() {
		b.WriteString(m.renderToast())
		b.WriteString("\n")
		return b.String()
	}

	step := m.ctrl.CurrentStep()
	b.WriteString(dimStyle.Render(step.Description(m.ctrl.Session().Provider)))
	b.WriteString("\n\n")

	var body string
	if step == onboard.StepTest {
		body = m.renderTest()
	} else {
		body = m.renderForm()
	}
	b.WriteString(wizardPaneStyle.Render(body))
	b.WriteString("\n")

	if m.hint != "" {
		b.WriteString(wizardWarnStyle.Render("! " + m.hint))
		b.WriteString("\n")
	}
	if t := m.renderToast(); t != "" {
		b.WriteString(t)
		b.WriteString("\n")
	}

	b.WriteString(m.renderHelp())
	return b.String()
}

// renderHeader renders the title and progress bar
func (m ConnectWizardModel) renderHeader() string {
	p := m.ctrl.Session().Provider
	step := m.ctrl.CurrentStep()
	noun := "ACCOUNT"
	if p == api.ProviderGCP {
		noun = "PROJECT"
	}
	title := fmt.Sprintf("CONNECT %s %s - %s", p.DisplayName(), noun, step.Title(p))

	barWidth := 20
	filled := int(float64(step) / float64(onboard.StepCount) * float64(barWidth))
	if m.ctrl.Done() {
		filled = barWidth
	}
	progressBar := wizardProgressBarFull.Render(strings.Repeat("█", filled)) +
		wizardProgressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	stepInfo := fmt.Sprintf("Step %d of %d", step, onboard.StepCount)

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		wizardTitleStyle.Render(title),
		"  ",
		progressBar,
		"  ",
		wizardProgressStyle.Render(stepInfo),
	)
}

func (m ConnectWizardModel) renderForm() string {
	s := m.ctrl.Session()
	fields := m.fields()
	focused := m.focusedField()

	var b strings.Builder
	for i, k := range fields {
		if i > 0 {
			b.WriteString("\n")
		}
		label := fieldLabels[k]
		if k == fieldAccountID {
			label = s.IdentifierLabel()
		}
		if k == focused {
			b.WriteString(wizardFocusedLabelStyle.Render("▸ " + label))
		} else {
			b.WriteString(wizardLabelStyle.Render("  " + label))
		}
		b.WriteString("\n  ")

		switch k {
		case fieldKeyJSON:
			b.WriteString(m.keyArea.View())
		case fieldFrequency:
			b.WriteString(fmt.Sprintf("‹ %s ›", s.Schedule.Frequency.Label()))
			if k == focused {
				b.WriteString(dimStyle.Render("  ←/→ to change"))
			}
		default:
			b.WriteString(m.inputs[k].View())
		}
		b.WriteString("\n")
	}

	if m.ctrl.CurrentStep() == onboard.StepCredentials && s.Provider == api.ProviderAWS {
		for _, w := range onboard.RoleARNWarnings(s.Credentials.AWS.RoleARN, s.AccountIdentifier) {
			b.WriteString("\n")
			b.WriteString(wizardWarnStyle.Render("! " + w))
		}
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Need the role? crpm connect aws --print-template > role.json"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m ConnectWizardModel) renderTest() string {
	s := m.ctrl.Session()
	var b strings.Builder

	switch s.Connection.Status {
	case onboard.StatusConnecting:
		b.WriteString(m.spinner.View())
		b.WriteString(" Testing connection...")

	case onboard.StatusSuccess:
		b.WriteString(wizardSuccessStyle.Render("✓ Connection successful"))
		b.WriteString(renderConnectionDetails(s))

	case onboard.StatusError:
		b.WriteString(wizardErrorStyle.Render("✗ Connection failed"))
		if reason := connectionFailureReason(s); reason != "" {
			b.WriteString("\n")
			b.WriteString(wizardErrorStyle.Render(reason))
		}
		b.WriteString(renderConnectionDetails(s))

	default:
		b.WriteString(fmt.Sprintf("Ready to test access to %s %s.",
			strings.ToLower(s.IdentifierLabel()), s.AccountIdentifier))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Press enter to test the connection."))
	}
	return b.String()
}

func (m ConnectWizardModel) renderToast() string {
	t := m.toasts.Current()
	if t == nil {
		return ""
	}
	if t.kind == toastError {
		return wizardErrorStyle.Render("✗ " + t.msg)
	}
	return wizardSuccessStyle.Render("✓ " + t.msg)
}

func (m ConnectWizardModel) renderHelp() string {
	var help string
	switch m.ctrl.CurrentStep() {
	case onboard.StepDetails:
		help = "tab next field  enter continue  esc cancel"
	case onboard.StepCredentials:
		help = "tab next field  enter continue  esc back"
	case onboard.StepTest:
		switch m.ctrl.Session().Connection.Status {
		case onboard.StatusConnecting:
			help = "testing...  ctrl+c quit"
		case onboard.StatusSuccess:
			help = "enter continue  r test again  esc back"
		case onboard.StatusError:
			help = "r retry  esc back to credentials  ctrl+c quit"
		default:
			help = "enter test connection  esc back"
		}
	case onboard.StepSchedule:
		if m.ctrl.Busy() {
			help = "creating account...  ctrl+c quit"
		} else {
			help = "tab next field  ←/→ frequency  enter create account  esc back"
		}
	}
	return wizardHelpStyle.Render(help)
}

// RunConnectWizard runs the wizard until the account is created or the user leaves.
// It stays out of the alternate screen so the final frame remains visible.
func RunConnectWizard(ctx context.Context, ctrl *onboard.Controller, toasts *toastNotifier) (ConnectWizardModel, error) {
	p := tea.NewProgram(NewConnectWizardModel(ctx, ctrl, toasts), tea.WithContext(ctx))
	final, err := p.Run()
	if m, ok := final.(ConnectWizardModel); ok {
		return m, err
	}
	return ConnectWizardModel{cancelled: true}, err
}
