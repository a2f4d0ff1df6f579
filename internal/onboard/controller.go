// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package onboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"
	"go.uber.org/zap"

	"github.com/recoveryvault/crpm/pkg/api"
)

// Wizard states. The test state has one substate per connection status.
const (
	stateDetails        = "details"
	stateCredentials    = "credentials"
	stateTest           = "test"
	stateTestIdle       = "test.idle"
	stateTestConnecting = "test.connecting"
	stateTestSucceeded  = "test.succeeded"
	stateTestFailed     = "test.failed"
	stateSchedule       = "schedule"
	stateSubmitting     = "submitting"
	stateDone           = "done"
)

// Wizard triggers.
const (
	triggerAdvance      = "advance"
	triggerRetreat      = "retreat"
	triggerBeginTest    = "begin-test"
	triggerTestPassed   = "test-passed"
	triggerTestFailed   = "test-failed"
	triggerSubmit       = "submit"
	triggerSubmitFailed = "submit-failed"
	triggerSubmitted    = "submitted"
)

// ErrNotPermitted is returned when an action is not available in the current state.
var ErrNotPermitted = errors.New("action not available at this step")

// Controller owns a Session and the state machine that moves it through the wizard.
// It is not safe for concurrent use; front-ends call it from their UI goroutine
// and run only Validator.Validate and Registrar.Create elsewhere.
type Controller struct {
	session   *Session
	sm        *stateless.StateMachine
	validator *Validator
	registrar *Registrar
	logger    *zap.Logger
}

// NewController creates a Controller positioned at step 1.
func NewController(session *Session, validator *Validator, registrar *Registrar, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		session:   session,
		validator: validator,
		registrar: registrar,
		logger:    logger.With(zap.String("session", session.ID)),
	}
	c.sm = c.newStateMachine()
	return c
}

func (c *Controller) newStateMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(stateDetails)

	hasIdentifier := func(_ context.Context, _ ...any) bool { return c.session.HasIdentifier() }
	hasCredentials := func(_ context.Context, _ ...any) bool { return c.session.HasCredentialMaterial() }
	validSchedule := func(_ context.Context, _ ...any) bool {
		return c.session.Schedule.Validate(c.session.Provider) == nil
	}

	sm.Configure(stateDetails).
		Permit(triggerAdvance, stateCredentials, hasIdentifier)

	sm.Configure(stateCredentials).
		PermitDynamic(triggerAdvance, c.testEntryState, hasCredentials).
		Permit(triggerRetreat, stateDetails)

	sm.Configure(stateTestIdle).
		SubstateOf(stateTest).
		Permit(triggerBeginTest, stateTestConnecting).
		Permit(triggerRetreat, stateCredentials)

	sm.Configure(stateTestConnecting).
		SubstateOf(stateTest).
		Permit(triggerTestPassed, stateTestSucceeded).
		Permit(triggerTestFailed, stateTestFailed)

	sm.Configure(stateTestFailed).
		SubstateOf(stateTest).
		Permit(triggerBeginTest, stateTestConnecting).
		Permit(triggerRetreat, stateCredentials)

	sm.Configure(stateTestSucceeded).
		SubstateOf(stateTest).
		Permit(triggerBeginTest, stateTestConnecting).
		Permit(triggerAdvance, stateSchedule).
		Permit(triggerRetreat, stateCredentials)

	sm.Configure(stateSchedule).
		Permit(triggerRetreat, stateTestSucceeded).
		Permit(triggerSubmit, stateSubmitting, validSchedule)

	sm.Configure(stateSubmitting).
		Permit(triggerSubmitFailed, stateSchedule).
		Permit(triggerSubmitted, stateDone)

	sm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		c.logger.Info("wizard transition",
			zap.Any("from", t.Source),
			zap.Any("to", t.Destination),
			zap.Any("trigger", t.Trigger))
	})

	return sm
}

// testEntryState picks the test substate matching the last connection result,
// so a successful test stays successful when the user steps back and forth.
func (c *Controller) testEntryState(_ context.Context, _ ...any) (stateless.State, error) {
	switch c.session.Connection.Status {
	case StatusSuccess:
		return stateTestSucceeded, nil
	case StatusError:
		return stateTestFailed, nil
	}
	return stateTestIdle, nil
}

// Session returns the session being edited. Front-ends write field edits into it directly.
func (c *Controller) Session() *Session {
	return c.session
}

// Validator returns the validator used for connection tests.
func (c *Controller) Validator() *Validator {
	return c.validator
}

// Registrar returns the registrar used on submit.
func (c *Controller) Registrar() *Registrar {
	return c.registrar
}

// State returns the current state name, for logging and tests.
func (c *Controller) State() string {
	return fmt.Sprint(c.sm.MustState())
}

// CurrentStep maps the state to the step number shown to the user.
func (c *Controller) CurrentStep() Step {
	switch c.sm.MustState() {
	case stateDetails:
		return StepDetails
	case stateCredentials:
		return StepCredentials
	case stateSchedule, stateSubmitting, stateDone:
		return StepSchedule
	}
	return StepTest
}

// Done reports whether the account has been created.
func (c *Controller) Done() bool {
	return c.sm.MustState() == stateDone
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool {
	s := c.sm.MustState()
	return s == stateTestConnecting || s == stateSubmitting
}

func (c *Controller) canFire(trigger string) bool {
	ok, err := c.sm.CanFire(trigger)
	return err == nil && ok
}

func (c *Controller) fire(trigger string) bool {
	if !c.canFire(trigger) {
		return false
	}
	if err := c.sm.Fire(trigger); err != nil {
		c.logger.Warn("wizard trigger failed", zap.String("trigger", trigger), zap.Error(err))
		return false
	}
	return true
}

// CanAdvance reports whether the current step's requirements are met.
func (c *Controller) CanAdvance() bool { return c.canFire(triggerAdvance) }

// CanRetreat reports whether Back is available.
func (c *Controller) CanRetreat() bool { return c.canFire(triggerRetreat) }

// CanTest reports whether a connection test may start.
func (c *Controller) CanTest() bool { return c.canFire(triggerBeginTest) }

// CanSubmit reports whether the account may be created.
func (c *Controller) CanSubmit() bool { return c.canFire(triggerSubmit) }

// Advance moves to the next step. It does nothing and returns false when the
// current step's requirements are not met.
func (c *Controller) Advance() bool { return c.fire(triggerAdvance) }

// Retreat moves to the previous step without clearing any input. It returns
// false on step 1 and while a request is in flight.
func (c *Controller) Retreat() bool { return c.fire(triggerRetreat) }

// BeginTest marks a connection test as started and returns the snapshot to validate.
func (c *Controller) BeginTest() (Attempt, bool) {
	if !c.fire(triggerBeginTest) {
		return Attempt{}, false
	}
	c.session.Connection.Status = StatusConnecting
	return c.session.attempt(), true
}

// CompleteTest records the result of the test started by BeginTest.
func (c *Controller) CompleteTest(r Result) {
	c.session.Connection = Connection{
		Status:    r.Status,
		Details:   r.Details,
		JSONError: r.JSONError,
		Message:   r.Message,
	}
	trigger := triggerTestFailed
	if r.Status == StatusSuccess {
		trigger = triggerTestPassed
	}
	c.fire(trigger)
}

// TestConnection runs a connection test synchronously.
func (c *Controller) TestConnection(ctx context.Context) (Result, bool) {
	attempt, ok := c.BeginTest()
	if !ok {
		return Result{}, false
	}
	r := c.validator.Validate(ctx, attempt)
	c.CompleteTest(r)
	return r, true
}

// BeginSubmit marks the submission as started and returns the payload to send.
func (c *Controller) BeginSubmit() (api.AccountCreate, error) {
	if !c.canFire(triggerSubmit) {
		return api.AccountCreate{}, ErrNotPermitted
	}
	payload, err := c.session.createRequest()
	if err != nil {
		return api.AccountCreate{}, err
	}
	if !c.fire(triggerSubmit) {
		return api.AccountCreate{}, ErrNotPermitted
	}
	return payload, nil
}

// CompleteSubmit records the outcome of the submission started by BeginSubmit
// and hands it to the registrar to notify and redirect. On failure the wizard
// stays on the schedule step.
func (c *Controller) CompleteSubmit(o Outcome) CreateResult {
	if o.OK() {
		c.fire(triggerSubmitted)
	} else {
		c.fire(triggerSubmitFailed)
	}
	return c.registrar.Finish(o)
}

// Submit creates the account synchronously.
func (c *Controller) Submit(ctx context.Context) (CreateResult, error) {
	payload, err := c.BeginSubmit()
	if err != nil {
		return CreateResult{}, err
	}
	return c.CompleteSubmit(c.registrar.Create(ctx, payload)), nil
}
