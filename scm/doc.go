/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package scm fetches merge-request diffs from GitLab and pull-request
// diffs from GitHub, and posts review results back as comments.
//
// Both forges satisfy the same Forge interface, so the review tools do not
// care which one backs a change.
package scm
