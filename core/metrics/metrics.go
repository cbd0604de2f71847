// Package metrics provides prometheus instrumentation for the plugin host.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/sammwyy/easel/api"
)

// Metrics contains the host's prometheus collectors
type Metrics struct {
	Registrations *prometheus.CounterVec
	Dispatches    *prometheus.CounterVec
	HookErrors    *prometheus.CounterVec
	Signals       *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easel_orchestrator_registrations_total",
				Help: "Plugin registrations attempted on orchestrators by result",
			},
			[]string{"orchestrator", "result"},
		),
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easel_plugin_dispatches_total",
				Help: "Host events dispatched to plugins by hook",
			},
			[]string{"hook"},
		),
		HookErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easel_plugin_hook_errors_total",
				Help: "Plugin hook invocations that returned an error",
			},
			[]string{"plugin", "hook"},
		),
		Signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "easel_signals_total",
				Help: "Signals published on the bus by type",
			},
			[]string{"type"},
		),
	}

	reg.MustRegister(m.Registrations, m.Dispatches, m.HookErrors, m.Signals)
	return m
}

// RecordRegistration counts one orchestrator registration attempt
func (m *Metrics) RecordRegistration(orchestrator string, admitted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if admitted {
		result = "admitted"
	}
	m.Registrations.WithLabelValues(orchestrator, result).Inc()
}

// RecordDispatch counts one host event dispatch
func (m *Metrics) RecordDispatch(hook string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(hook).Inc()
}

// RecordHookError counts one failing hook invocation
func (m *Metrics) RecordHookError(plugin, hook string) {
	if m == nil {
		return
	}
	m.HookErrors.WithLabelValues(plugin, hook).Inc()
}

// RecordSignal counts one published signal
func (m *Metrics) RecordSignal(signalType string) {
	if m == nil {
		return
	}
	m.Signals.WithLabelValues(signalType).Inc()
}

// Server exposes a registry on /metrics
type Server struct {
	addr     string
	registry *prometheus.Registry
	listener net.Listener
	server   *http.Server
	logger   api.Logger
}

// NewServer creates a metrics server with Go runtime and process collectors
// registered next to the host metrics.
func NewServer(addr string, logger api.Logger) (*Server, *Metrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewMetrics(registry)

	return &Server{
		addr:     addr,
		registry: registry,
		logger:   logger,
	}, m
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.In("metrics").With("addr", s.addr).Wrapf(err, "listen")
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()

	s.logger.Info("Metrics server started", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return oops.In("metrics").Wrapf(err, "shutdown")
	}
	s.logger.Info("Metrics server stopped")
	return nil
}
