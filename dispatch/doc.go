/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package dispatch maps JSON-RPC method names to handlers.
//
// A Dispatcher holds the built-in protocol methods (initialize, ping,
// tools/list, tools/call) plus registered tools. The same dispatcher
// serves a standalone instance's front-end requests and the slave side of
// the proxy channel, so both paths execute tools identically.
package dispatch
