/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package server is the front-end HTTP transport: the JSON-RPC endpoint,
// the slave channel endpoint, the server-sent event stream and the health
// and metrics surfaces.
package server
