package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// maxTimingSamples bounds the retained processing-time series.
const maxTimingSamples = 1000

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quillscan_jobs_total",
		Help: "Number of dispatched jobs by kind and outcome.",
	}, []string{"kind", "outcome"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quillscan_job_duration_seconds",
		Help:    "Job processing time by kind.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"kind"})
)

// Metrics is a thread-safe container for service counters plus a bounded
// series of recent processing times.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]float64
	times    []float64
	startup  time.Time
}

// NewMetrics returns a metrics container with all well-known counters preset
// to zero.
func NewMetrics() *Metrics {
	m := &Metrics{
		counters: map[string]float64{
			"total_requests":               0,
			"cache_hits":                   0,
			"cache_misses":                 0,
			"total_processing_time":        0,
			"error_count":                  0,
			"images_processed":             0,
			"videos_processed":             0,
			"documents_processed":          0,
			"frames_processed_from_videos": 0,
		},
		startup: time.Now(),
	}
	return m
}

// Inc adds delta to the named counter.
func (m *Metrics) Inc(name string, delta float64) {
	m.mu.Lock()
	m.counters[name] += delta
	m.mu.Unlock()
}

// ObserveProcessingTime records one request's processing time in seconds.
func (m *Metrics) ObserveProcessingTime(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters["total_requests"]++
	m.counters["total_processing_time"] += seconds
	m.times = append(m.times, seconds)
	if len(m.times) > maxTimingSamples {
		m.times = m.times[len(m.times)-maxTimingSamples:]
	}
}

// Snapshot returns a copy of all counters plus derived values.
func (m *Metrics) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]any, len(m.counters)+3)
	for k, v := range m.counters {
		out[k] = v
	}

	var avg float64
	if n := m.counters["total_requests"]; n > 0 {
		avg = m.counters["total_processing_time"] / n
	}
	out["average_processing_time"] = avg
	out["recent_samples"] = len(m.times)
	out["uptime_seconds"] = time.Since(m.startup).Seconds()
	return out
}
