// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mergemining

import "github.com/prometheus/client_golang/prometheus"

var (
	candidateEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pbaas",
		Subsystem: "mergemining",
		Name:      "candidate_events_total",
		Help:      "Merge-mine candidate table changes by event.",
	}, []string{"event"})

	candidateCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pbaas",
		Subsystem: "mergemining",
		Name:      "candidates",
		Help:      "Merge-mine candidates currently held.",
	})

	submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pbaas",
		Subsystem: "mergemining",
		Name:      "submissions_total",
		Help:      "Solved merged blocks by submission outcome.",
	}, []string{"outcome"})
)

// Collectors returns the metrics of the package for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{candidateEvents, candidateCount, submissions}
}
