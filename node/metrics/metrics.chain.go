// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// StatsProvider reports named gauge values.
type StatsProvider interface {
	Stats() map[string]float64
}

type chainMetrics struct {
	sync.Mutex
	metricsByName map[string]prometheus.Gauge
	registerer    prometheus.Registerer
	logger        zerolog.Logger

	chainID   string
	chainName string
	netName   string

	chain StatsProvider
}

// ChainMetrics exposes the stats of chain as gauges named
// pbaas_chain_<stat>.
func ChainMetrics(chain StatsProvider, chainName, chainID, netName string,
	registerer prometheus.Registerer, logger zerolog.Logger) IMetric {
	return &chainMetrics{
		chain:         chain,
		registerer:    registerer,
		logger:        logger.With().Str("ctx", "metrics").Str("chain", chainName).Logger(),
		chainID:       chainID,
		chainName:     chainName,
		netName:       netName,
		metricsByName: make(map[string]prometheus.Gauge),
	}
}

func (s *chainMetrics) Read() {
	stats := s.chain.Stats()
	for name, value := range stats {
		s.updateGauge(prometheus.BuildFQName("pbaas", "chain", name), value)
	}
}

func (s *chainMetrics) updateGauge(name string, value float64) {
	s.Lock()
	defer s.Unlock()

	m, ok := s.metricsByName[name]
	if !ok {
		m = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name,
			ConstLabels: map[string]string{
				"chain_name": s.chainName,
				"chain_id":   s.chainID,
				"net_name":   s.netName,
			},
		})
		if err := s.registerer.Register(m); err != nil {
			s.logger.Error().Err(err).Str("metric", name).Msg("can't register metric")
		}
		s.metricsByName[name] = m
	}
	m.Set(value)
}
