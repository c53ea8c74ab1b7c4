// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics for the reset job state machine.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// resetOutcomesTotal counts terminal reset outcomes.
	// Labels: outcome (success, failed, timed_out)
	resetOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sophia",
		Subsystem: "reset",
		Name:      "outcomes_total",
		Help:      "Terminal reset job outcomes by status",
	}, []string{"outcome"})

	// resetPollAttempts measures how many polls a job needed to resolve.
	// Labels: outcome
	resetPollAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sophia",
		Subsystem: "reset",
		Name:      "poll_attempts",
		Help:      "Poll attempts consumed before a job reached a terminal state",
		Buckets:   []float64{1, 2, 3, 5, 8, 12, 20},
	}, []string{"outcome"})
)

// recordOutcome records one terminal outcome and the attempts it consumed.
func recordOutcome(status Status, attempts int) {
	resetOutcomesTotal.WithLabelValues(string(status)).Inc()
	resetPollAttempts.WithLabelValues(string(status)).Observe(float64(attempts))
}
