/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package output renders review reports for the terminal, for forge comments
// and for machine consumers. The markdown renderer is what gets posted back
// to merge requests.
package output
