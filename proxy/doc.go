/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package proxy implements the master/slave execution channel.
//
// A master instance accepts a single persistent WebSocket connection from a
// slave instance, authenticates it against a static credential whitelist, and
// relays JSON-RPC invocations it receives on its front-end surface to the
// slave instead of executing them locally. Replies are matched back to the
// original caller by correlation identifier.
//
// The slave side maintains the outbound connection across failures with a
// fixed-delay reconnect loop and executes relayed invocations against the
// same local tool dispatcher a standalone instance would use.
//
// At most one slave connection is active at a time: a newly authenticated
// connection supersedes and closes any previous one.
package proxy
