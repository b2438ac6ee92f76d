/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package proxy

import "errors"

var (
	// ErrNoSlave is returned by Relay when no authenticated slave channel
	// exists. Callers get this immediately rather than waiting out the
	// relay timeout.
	ErrNoSlave = errors.New("no slave server connected")

	// ErrRelayTimeout is returned by Relay when no reply arrived within
	// the relay timeout. Distinguishable from other failures so callers
	// can decide whether to retry.
	ErrRelayTimeout = errors.New("proxy request timeout")

	// ErrAuthFailed is returned by the slave connector when the master
	// rejected its credential. The reconnect loop still continues, since
	// the master may be reconfigured.
	ErrAuthFailed = errors.New("slave authentication rejected")

	// ErrDuplicateID is returned by Relay when the caller-supplied
	// correlation identifier already has an invocation in flight.
	ErrDuplicateID = errors.New("correlation id already in flight")
)
