package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks relay pipeline statistics.
type PipelineMetrics struct {
	mu sync.Mutex

	processedTotal prometheus.Counter
	deliveredTotal prometheus.Counter
	droppedTotal   prometheus.Counter
	connectedGauge prometheus.GaugeFunc
	upstreamGauge  prometheus.GaugeFunc

	registerer prometheus.Registerer
	registered bool
}

// Options supplies the live sampling functions for the gauges. Both are
// required; they are read by the Prometheus scrape goroutine and must be safe
// for concurrent use.
type Options struct {
	// ConnectedClients samples the current subscriber count.
	ConnectedClients func() float64
	// UpstreamConnected samples upstream liveness (1 connected, 0 not).
	UpstreamConnected func() float64
}

func newPipelineCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vlmrelay",
		Subsystem: "pipeline",
		Name:      name,
		Help:      help,
	})
}

func newPipelineGaugeFunc(name, help string, sample func() float64) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "vlmrelay",
		Subsystem: "pipeline",
		Name:      name,
		Help:      help,
	}, sample)
}

// NewPipelineMetrics creates the relay's metric collectors. Pass nil to use
// the default registerer.
func NewPipelineMetrics(registerer prometheus.Registerer, opts Options) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if opts.ConnectedClients == nil {
		opts.ConnectedClients = func() float64 { return 0 }
	}
	if opts.UpstreamConnected == nil {
		opts.UpstreamConnected = func() float64 { return 0 }
	}

	return &PipelineMetrics{
		registerer:     registerer,
		processedTotal: newPipelineCounter("events_processed_total", "Total number of upstream entries normalized and broadcast"),
		deliveredTotal: newPipelineCounter("deliveries_total", "Total number of successful per-subscriber deliveries"),
		droppedTotal:   newPipelineCounter("subscribers_dropped_total", "Total number of subscribers dropped after a failed delivery"),
		connectedGauge: newPipelineGaugeFunc("connected_clients", "Current number of connected subscribers", opts.ConnectedClients),
		upstreamGauge:  newPipelineGaugeFunc("upstream_connected", "Whether the upstream log connection is live", opts.UpstreamConnected),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *PipelineMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.processedTotal,
		m.deliveredTotal,
		m.droppedTotal,
		m.connectedGauge,
		m.upstreamGauge,
	}
	for _, collector := range collectors {
		if err := m.registerer.Register(collector); err != nil {
			return err
		}
	}

	m.registered = true
	return nil
}

// RecordEvent records one processed entry and its fan-out outcome.
func (m *PipelineMetrics) RecordEvent(delivered, dropped int) {
	m.processedTotal.Inc()
	m.deliveredTotal.Add(float64(delivered))
	m.droppedTotal.Add(float64(dropped))
}
