// Package metrics exposes Prometheus collectors for scan processing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rollcall/internal/attendance"
)

const namespace = "rollcall"

// Pipeline records scan outcomes, latency and write-back failures.
type Pipeline struct {
	scans      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	writebacks prometheus.Counter
	inflight   prometheus.Gauge
}

// NewPipeline creates the collectors and registers them with reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scans processed, by terminal status and reason.",
		}, []string{"status", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time from pipeline entry to terminal outcome, by final stage.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"stage"}),
		writebacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writeback_failures_total",
			Help:      "Outcomes that could not be written back to the scan record.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_scans",
			Help:      "Scans currently being processed.",
		}),
	}
	reg.MustRegister(p.scans, p.duration, p.writebacks, p.inflight)
	return p
}

// ObserveScan implements attendance.Observer.
func (p *Pipeline) ObserveScan(stage attendance.Stage, out attendance.Outcome, elapsed time.Duration) {
	p.scans.WithLabelValues(string(out.Status), out.Reason).Inc()
	p.duration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// WritebackFailed counts a failed outcome write-back.
func (p *Pipeline) WritebackFailed() { p.writebacks.Inc() }

// ScanStarted and ScanFinished track in-flight scans.
func (p *Pipeline) ScanStarted()  { p.inflight.Inc() }
func (p *Pipeline) ScanFinished() { p.inflight.Dec() }
