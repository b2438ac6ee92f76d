/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package tools registers the review tools on a dispatcher. The same tool
// set serves standalone mode and the slave side of the proxy.
package tools
