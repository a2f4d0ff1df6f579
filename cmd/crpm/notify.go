// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/recoveryvault/crpm/pkg/api"
)

// printNotifier writes notifications as status lines.
type printNotifier struct {
	w io.Writer
}

func (n printNotifier) Success(msg string) {
	fmt.Fprintln(n.w, okStyle.Render("✓ "+msg))
}

func (n printNotifier) Error(msg string) {
	fmt.Fprintln(n.w, errStyle.Render("✗ "+msg))
}

// toastKind says how a toast is styled.
type toastKind int

const (
	toastSuccess toastKind = iota
	toastError
)

type toast struct {
	kind toastKind
	msg  string
}

// toastNotifier keeps the latest notification for the TUI to render.
// Registrar.Finish runs inside Update, so no locking is needed.
type toastNotifier struct {
	last *toast
}

func (n *toastNotifier) Success(msg string) { n.last = &toast{kind: toastSuccess, msg: msg} }
func (n *toastNotifier) Error(msg string)   { n.last = &toast{kind: toastError, msg: msg} }

// Current returns the toast to show, or nil.
func (n *toastNotifier) Current() *toast { return n.last }

// Clear drops the current toast.
func (n *toastNotifier) Clear() { n.last = nil }

// terminalNavigator records where the user should go once the wizard ends.
// The terminal cannot navigate mid-run, so the redirect is followed after exit.
type terminalNavigator struct {
	target string
	count  int
}

func (n *terminalNavigator) Navigate(target string) {
	n.target = target
	n.count++
}

// Target returns the recorded redirect target, or "".
func (n *terminalNavigator) Target() string {
	return n.target
}

// followRedirect shows the view a dashboard route stands for.
// The discovery history route becomes the scan list; other routes are printed.
func followRedirect(ctx context.Context, w io.Writer, client *api.Client, target string) error {
	if target == "" {
		return nil
	}
	if target != api.DiscoveryHistoryRoute {
		fmt.Fprintf(w, "\nContinue in the dashboard at %s\n", target)
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("DISCOVERY HISTORY"))
	list, err := client.ListScans(ctx)
	if err != nil {
		// The account exists; a failed follow-up read should not fail the run.
		fmt.Fprintln(w, warnStyle.Render("Could not load scan history: "+err.Error()))
		fmt.Fprintln(w, dimStyle.Render("Run crpm scans list once the first discovery scan has started."))
		return nil
	}
	return writeScans(w, formatTable, list, nil)
}
