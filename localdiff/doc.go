/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package localdiff produces unified diffs from a local git repository so
// that changes can be reviewed before they are ever pushed to a forge. The
// diffs are packaged as scm.Change values and flow through the same review
// engine as forge-backed merge requests.
package localdiff
