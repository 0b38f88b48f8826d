// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package health

import "time"

// Metrics exposes the current health state of an embedding provider for
// operator visibility. All fields are point-in-time snapshots safe to
// serialize to JSON.
type Metrics struct {
	Calls         int64      `json:"calls"`
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}
