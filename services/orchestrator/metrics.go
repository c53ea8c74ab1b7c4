// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sophia",
			Subsystem: "orchestrator",
			Name:      "exchanges_total",
			Help:      "Completed chat exchanges by kind (text or tool).",
		},
		[]string{"kind"},
	)

	toolDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sophia",
			Subsystem: "orchestrator",
			Name:      "tool_dispatch_total",
			Help:      "Tool dispatches by tool name and result status.",
		},
		[]string{"tool", "status"},
	)

	gateRefusalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sophia",
			Subsystem: "orchestrator",
			Name:      "gate_refusals_total",
			Help:      "reset_execute requests refused for missing confirmation.",
		},
	)
)

func recordExchange(kind string) {
	exchangesTotal.WithLabelValues(kind).Inc()
}

func recordDispatch(tool, status string) {
	if status == "" {
		status = "ok"
	}
	toolDispatchTotal.WithLabelValues(tool, status).Inc()
}

func recordGateRefusal() {
	gateRefusalsTotal.Inc()
}
