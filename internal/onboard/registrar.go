// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package onboard

import (
	"context"

	"go.uber.org/zap"

	"github.com/recoveryvault/crpm/pkg/api"
)

// AccountCreator persists a new account. *api.Client implements it.
type AccountCreator interface {
	CreateAccount(ctx context.Context, req api.AccountCreate) (*api.Account, error)
}

// Notifier shows transient user-facing messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Navigator moves the user to another view once onboarding is over.
type Navigator interface {
	Navigate(target string)
}

// Outcome is the result of one create request.
type Outcome struct {
	Provider api.Provider
	Account  *api.Account
	Err      error
}

// OK reports whether the account was created.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// CreateResult is what CreateAccount reports to its caller.
type CreateResult struct {
	OK             bool
	RedirectTarget string
	Account        *api.Account
}

// Registrar creates the account and then notifies and redirects.
type Registrar struct {
	creator   AccountCreator
	notifier  Notifier
	navigator Navigator
	redirect  string
	logger    *zap.Logger
}

// NewRegistrar creates a Registrar that sends the user to redirect after success.
// An empty redirect uses the discovery history route.
func NewRegistrar(creator AccountCreator, notifier Notifier, navigator Navigator, redirect string, logger *zap.Logger) *Registrar {
	if redirect == "" {
		redirect = api.DiscoveryHistoryRoute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registrar{
		creator:   creator,
		notifier:  notifier,
		navigator: navigator,
		redirect:  redirect,
		logger:    logger,
	}
}

// RedirectTarget is where the user is sent after a successful creation.
func (r *Registrar) RedirectTarget() string {
	return r.redirect
}

// Create sends the create request. It performs no UI side effects and is safe
// to run off the UI goroutine.
func (r *Registrar) Create(ctx context.Context, payload api.AccountCreate) Outcome {
	account, err := r.creator.CreateAccount(ctx, payload)
	log := r.logger.With(zap.String("provider", string(payload.Provider)), zap.String("account", payload.AccountIdentifier))
	if err != nil {
		log.Warn("account creation failed", zap.Error(err), zap.Int("status", api.StatusCode(err)))
		return Outcome{Provider: payload.Provider, Err: err}
	}
	if account != nil {
		log.Info("account created", zap.String("id", account.ID))
	}
	return Outcome{Provider: payload.Provider, Account: account}
}

// Finish reports o to the user: a success notification followed by exactly one
// navigation, or an error notification and no navigation.
func (r *Registrar) Finish(o Outcome) CreateResult {
	if !o.OK() {
		if r.notifier != nil {
			r.notifier.Error(failureMessage(o.Provider))
		}
		return CreateResult{}
	}
	if r.notifier != nil {
		r.notifier.Success(successMessage(o.Provider))
	}
	if r.navigator != nil {
		r.navigator.Navigate(r.redirect)
	}
	return CreateResult{OK: true, RedirectTarget: r.redirect, Account: o.Account}
}

// CreateAccount runs Create and Finish back to back.
func (r *Registrar) CreateAccount(ctx context.Context, payload api.AccountCreate) CreateResult {
	return r.Finish(r.Create(ctx, payload))
}

func successMessage(p api.Provider) string {
	if p == api.ProviderGCP {
		return "GCP account connected successfully!"
	}
	return "Account connected"
}

func failureMessage(p api.Provider) string {
	if p == api.ProviderGCP {
		return "Failed to create account"
	}
	return "Failed to connect account"
}
