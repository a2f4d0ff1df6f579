// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

package onboard

// ConnectionStatus is the state of credential validation.
type ConnectionStatus string

const (
	StatusIdle       ConnectionStatus = "idle"
	StatusConnecting ConnectionStatus = "connecting"
	StatusSuccess    ConnectionStatus = "success"
	StatusError      ConnectionStatus = "error"
)

func (s ConnectionStatus) String() string {
	if s == "" {
		return string(StatusIdle)
	}
	return string(s)
}
