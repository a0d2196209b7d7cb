//file: internal/metrics/metrics.go
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the matching engine.
type Metrics struct {
	evaluationsTotal   *prometheus.CounterVec
	ruleMatchesTotal   prometheus.Counter
	evaluationDuration prometheus.Histogram
	eventsTotal        *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	rulesActive        prometheus.Gauge
	busConnected       prometheus.Gauge
	busReconnects      prometheus.Counter
	queueDepth         prometheus.Gauge
	uptimeSeconds      prometheus.Gauge
}

// NewMetrics creates and registers all collectors on the given registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskrules_evaluations_total",
			Help: "Number of rule evaluations by outcome (matched, unmatched, error)",
		}, []string{"outcome"}),
		ruleMatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deskrules_rule_matches_total",
			Help: "Number of rule evaluations that produced a match",
		}),
		evaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deskrules_evaluation_duration_seconds",
			Help:    "Time spent evaluating a rule against the store",
			Buckets: prometheus.DefBuckets,
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskrules_events_total",
			Help: "Number of entity events by status (received, processed, error)",
		}, []string{"status"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskrules_notifications_total",
			Help: "Number of match notifications published by status (success, error)",
		}, []string{"status"}),
		rulesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deskrules_rules_active",
			Help: "Number of rules currently loaded in the index",
		}),
		busConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deskrules_bus_connected",
			Help: "Whether the event bus connection is up (1) or down (0)",
		}),
		busReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deskrules_bus_reconnects_total",
			Help: "Number of event bus reconnections",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deskrules_event_queue_depth",
			Help: "Number of entity events waiting in the processing queue",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deskrules_uptime_seconds",
			Help: "Seconds since the process started",
		}),
	}

	collectors := []prometheus.Collector{
		m.evaluationsTotal,
		m.ruleMatchesTotal,
		m.evaluationDuration,
		m.eventsTotal,
		m.notificationsTotal,
		m.rulesActive,
		m.busConnected,
		m.busReconnects,
		m.queueDepth,
		m.uptimeSeconds,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// IncEvaluationsTotal increments the evaluation counter for an outcome
func (m *Metrics) IncEvaluationsTotal(outcome string) {
	m.evaluationsTotal.WithLabelValues(outcome).Inc()
}

// IncRuleMatches increments the rule match counter
func (m *Metrics) IncRuleMatches() {
	m.ruleMatchesTotal.Inc()
}

// ObserveEvaluationDuration records one rule evaluation duration
func (m *Metrics) ObserveEvaluationDuration(seconds float64) {
	m.evaluationDuration.Observe(seconds)
}

// IncEventsTotal increments the event counter for a status
func (m *Metrics) IncEventsTotal(status string) {
	m.eventsTotal.WithLabelValues(status).Inc()
}

// IncNotificationsTotal increments the published-notification counter
func (m *Metrics) IncNotificationsTotal(status string) {
	m.notificationsTotal.WithLabelValues(status).Inc()
}

// SetRulesActive sets the active rule gauge
func (m *Metrics) SetRulesActive(count float64) {
	m.rulesActive.Set(count)
}

// SetBusConnectionStatus sets the event bus connection gauge
func (m *Metrics) SetBusConnectionStatus(connected bool) {
	if connected {
		m.busConnected.Set(1)
	} else {
		m.busConnected.Set(0)
	}
}

// IncBusReconnects increments the reconnect counter
func (m *Metrics) IncBusReconnects() {
	m.busReconnects.Inc()
}

// SetQueueDepth sets the event queue depth gauge
func (m *Metrics) SetQueueDepth(depth float64) {
	m.queueDepth.Set(depth)
}

// MetricsCollector periodically refreshes gauges that are sampled
// rather than event driven.
type MetricsCollector struct {
	metrics  *Metrics
	interval time.Duration
	start    time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMetricsCollector creates a collector that updates every interval
func NewMetricsCollector(m *Metrics, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		metrics:  m,
		interval: interval,
		start:    time.Now(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection loop
func (c *MetricsCollector) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.metrics.uptimeSeconds.Set(time.Since(c.start).Seconds())
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the collection loop
func (c *MetricsCollector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
}
