// Package metrics records toolagent activity as Prometheus metrics.
// A Collector owns its registry, so several can coexist (one per test).
// Every recorder method is safe on a nil *Collector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "toolagent"

// Collector aggregates counters and histograms for one process.
type Collector struct {
	registry *prometheus.Registry

	toolCalls       *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	retries         prometheus.Counter
	planningRounds  prometheus.Counter
	protocolRepairs *prometheus.CounterVec
	runs            *prometheus.CounterVec
	generate        prometheus.Histogram
	startTime       time.Time
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool dispatches by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by result (hit, miss, expired)",
			},
			[]string{"result"},
		),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Failed attempts that were retried",
		}),
		planningRounds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "planning_rounds_total",
			Help:      "Planning rounds across all runs",
		}),
		protocolRepairs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "protocol_repairs_total",
				Help:      "Undecodable planner replies by recovery outcome",
			},
			[]string{"outcome"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished runs by terminal state",
			},
			[]string{"state"},
		),
		generate: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generate_duration_seconds",
			Help:      "Duration of text-generation calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		startTime: time.Now(),
	}
}

// Uptime returns how long the collector has been running.
func (c *Collector) Uptime() time.Duration {
	if c == nil {
		return 0
	}
	return time.Since(c.startTime)
}

// Registry exposes the underlying registry (for tests and extra collectors).
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) ToolCall(tool, outcome string) {
	if c == nil {
		return
	}
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (c *Collector) CacheLookup(result string) {
	if c == nil {
		return
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// Retry matches the retry observer signature.
func (c *Collector) Retry(attempt int, err error) {
	if c == nil {
		return
	}
	c.retries.Inc()
}

func (c *Collector) PlanningRound() {
	if c == nil {
		return
	}
	c.planningRounds.Inc()
}

func (c *Collector) ProtocolRepair(outcome string) {
	if c == nil {
		return
	}
	c.protocolRepairs.WithLabelValues(outcome).Inc()
}

func (c *Collector) RunFinished(state string) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(state).Inc()
}

func (c *Collector) ObserveGenerate(d time.Duration) {
	if c == nil {
		return
	}
	c.generate.Observe(d.Seconds())
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
