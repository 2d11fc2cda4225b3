// Package metrics exposes mcproxy's server and router metrics to Prometheus,
// mirroring tinytcp's promtinytcp package: a constructor that registers a
// fixed set of collectors against a prometheus.Registerer and returns
// closures the caller wires into the relevant OnX hooks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mrizzuto/mcproxy"
)

// Config specifies an optional namespace/subsystem for every metric
// registered by this package.
type Config struct {
	// Namespace is attached to all metrics registered here.
	Namespace string

	// Subsystem is attached to all metrics registered here.
	Subsystem string
}

// ServerHandler creates a metrics handler for mcproxy.Server, to be
// registered via Server.OnMetricsUpdate. It exposes all server-level
// metrics to the given prometheus.Registerer.
func ServerHandler(registerer prometheus.Registerer, config ...*Config) func(mcproxy.ServerMetrics) {
	c := &Config{}
	if config != nil {
		c = config[0]
	}

	totalRead := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "total_read",
		Help:      "Total number of bytes read by the server.",
		Namespace: c.Namespace,
		Subsystem: c.Subsystem,
	})
	totalWritten := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "total_written",
		Help:      "Total number of bytes written by the server.",
		Namespace: c.Namespace,
		Subsystem: c.Subsystem,
	})
	readLastSecond := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "read_last_second",
		Help:      "Total number of bytes read by the server last second.",
		Namespace: c.Namespace,
		Subsystem: c.Subsystem,
	})
	writtenLastSecond := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "written_last_second",
		Help:      "Total number of bytes written by the server last second.",
		Namespace: c.Namespace,
		Subsystem: c.Subsystem,
	})
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "connections",
		Help:      "Total number of active connections during the last second.",
		Namespace: c.Namespace,
		Subsystem: c.Subsystem,
	})
	goroutines := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "goroutines",
		Help:      "Total number of active goroutines during the last second.",
		Namespace: c.Namespace,
		Subsystem: c.Subsystem,
	})
	connectionsByProtocol := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "connections_by_protocol",
		Help:      "Current number of live connections, broken down by detected wire protocol.",
		Namespace: c.Namespace,
		Subsystem: c.Subsystem,
	}, []string{"protocol"})

	registerer.MustRegister(
		totalRead,
		totalWritten,
		readLastSecond,
		writtenLastSecond,
		connections,
		goroutines,
		connectionsByProtocol,
	)

	return func(m mcproxy.ServerMetrics) {
		totalRead.Set(float64(m.TotalRead))
		totalWritten.Set(float64(m.TotalWritten))
		readLastSecond.Set(float64(m.ReadLastSecond))
		writtenLastSecond.Set(float64(m.WrittenLastSecond))
		connections.Set(float64(m.Connections))
		goroutines.Set(float64(m.Goroutines))

		connectionsByProtocol.Reset()
		for protocol, count := range m.ConnectionsByProtocol {
			connectionsByProtocol.WithLabelValues(protocol.String()).Set(float64(count))
		}
	}
}

// RouterMetrics exposes the parser/dispatcher/context counters a running
// proxy accumulates: frames parsed per protocol, buffer shrink events, and
// reply latency.
type RouterMetrics struct {
	FramesParsedTotal   *prometheus.CounterVec
	ShrinkEventsTotal   prometheus.Counter
	ReplyLatencySeconds prometheus.Histogram
	ParseErrorsTotal    *prometheus.CounterVec
}

// NewRouterMetrics registers the router-level collectors against registerer
// and returns the handles used to record observations from the dispatcher
// and request context call sites.
func NewRouterMetrics(registerer prometheus.Registerer, config ...*Config) *RouterMetrics {
	c := &Config{}
	if config != nil {
		c = config[0]
	}

	m := &RouterMetrics{
		FramesParsedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "frames_parsed_total",
			Help:      "Total number of complete frames delivered, by protocol.",
			Namespace: c.Namespace,
			Subsystem: c.Subsystem,
		}, []string{"protocol"}),
		ShrinkEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "buffer_shrink_events_total",
			Help:      "Total number of times a connection's read buffer was shrunk back to its steady-state size.",
			Namespace: c.Namespace,
			Subsystem: c.Subsystem,
		}),
		ReplyLatencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      "reply_latency_seconds",
			Help:      "Time between a request entering processing and its client-visible reply being sent.",
			Namespace: c.Namespace,
			Subsystem: c.Subsystem,
			Buckets:   prometheus.DefBuckets,
		}),
		ParseErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "parse_errors_total",
			Help:      "Total number of fatal parse errors, by error code.",
			Namespace: c.Namespace,
			Subsystem: c.Subsystem,
		}, []string{"code"}),
	}

	registerer.MustRegister(
		m.FramesParsedTotal,
		m.ShrinkEventsTotal,
		m.ReplyLatencySeconds,
		m.ParseErrorsTotal,
	)

	return m
}
