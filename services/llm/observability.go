// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics for LLM calls.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// llmCallDuration measures the duration of generateContent calls.
	//
	// Labels:
	//   - model: the Gemini model name
	//   - status: "success" or "error"
	llmCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sophia",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Duration of LLM API calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model", "status"},
	)

	// llmCallsTotal counts the total number of generateContent calls.
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sophia",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of LLM API calls.",
		},
		[]string{"model", "status"},
	)

	// llmTokensTotal counts tokens consumed by LLM calls.
	//
	// Labels:
	//   - model: the Gemini model name
	//   - direction: "input" or "output"
	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sophia",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total tokens consumed by LLM calls.",
		},
		[]string{"model", "direction"},
	)

	// llmBlockedTotal counts responses filtered by the safety layer.
	llmBlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sophia",
			Subsystem: "llm",
			Name:      "blocked_total",
			Help:      "Total responses with no candidate due to content filtering.",
		},
		[]string{"model"},
	)
)

// recordCall records one completed HTTP exchange with the API.
func recordCall(model, status string, durationSec float64) {
	llmCallsTotal.WithLabelValues(model, status).Inc()
	llmCallDuration.WithLabelValues(model, status).Observe(durationSec)
}

// recordTokens records usage-metadata token counts.
func recordTokens(model string, input, output int) {
	llmTokensTotal.WithLabelValues(model, "input").Add(float64(input))
	llmTokensTotal.WithLabelValues(model, "output").Add(float64(output))
}

// recordBlocked records a content-filtered response.
func recordBlocked(model string) {
	llmBlockedTotal.WithLabelValues(model).Inc()
}
