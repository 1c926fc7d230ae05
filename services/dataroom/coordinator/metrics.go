// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcilePassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataroom_reconcile_passes_total",
		Help: "Completed reconciliation passes by trigger source",
	}, []string{"trigger"})

	reconcileCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dataroom_reconcile_coalesced_total",
		Help: "Triggers absorbed into an already queued follow-up pass",
	})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dataroom_reconcile_duration_seconds",
		Help:    "Time for one reconciliation pass",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	})

	fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataroom_fetch_failures_total",
		Help: "Failed backing store fetches by resource",
	}, []string{"resource"})

	authorizedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dataroom_viewer_authorized",
		Help: "1 while the viewer is authorized, 0 otherwise",
	})
)
