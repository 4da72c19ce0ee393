// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notarization

import "github.com/prometheus/client_golang/prometheus"

var (
	forkBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pbaas",
		Subsystem: "notarization",
		Name:      "fork_build_seconds",
		Help:      "Time spent computing notarization forks.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	crossProofs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pbaas",
		Subsystem: "notarization",
		Name:      "cross_proofs_total",
		Help:      "Cross-chain proof requests by outcome.",
	}, []string{"outcome"})
)

// Collectors returns the metrics of the package for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{forkBuildSeconds, crossProofs}
}
