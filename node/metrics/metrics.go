// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// IMetric is polled by the manager to refresh its values.
type IMetric interface {
	Read()
}

// Manager polls metrics and serves the registry.
type Manager struct {
	mtx      sync.Mutex
	metrics  []IMetric
	interval time.Duration
	registry *prometheus.Registry
	logger   zerolog.Logger
}

// NewManager creates a manager with its own registry, which already holds
// the process and go runtime collectors.
func NewManager(interval time.Duration, logger zerolog.Logger) *Manager {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return &Manager{
		interval: interval,
		registry: registry,
		logger:   logger,
	}
}

// Registry is where polled and static metrics are registered.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

func (m *Manager) Add(metrics ...IMetric) {
	m.mtx.Lock()
	m.metrics = append(m.metrics, metrics...)
	m.mtx.Unlock()
}

// Register adds static collectors, such as the package counters of the
// node components.
func (m *Manager) Register(collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Read polls every metric once.
func (m *Manager) Read() {
	m.mtx.Lock()
	metrics := append([]IMetric(nil), m.metrics...)
	m.mtx.Unlock()

	for _, v := range metrics {
		v.Read()
	}
}

// Run polls the metrics every interval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Read()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Read()
		}
	}
}

// Listen serves the registry on route until ctx is done.
func (m *Manager) Listen(ctx context.Context, route string, port uint16) error {
	mux := http.NewServeMux()
	mux.Handle(route, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	m.logger.Info().Str("addr", srv.Addr).Str("route", route).Msg("metrics server started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
