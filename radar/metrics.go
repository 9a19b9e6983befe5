package radar

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/llhlol/IWR1443-data-collection/metric"
)

// Metrics holds Prometheus metrics for the data endpoint
type Metrics struct {
	framesDecoded  prometheus.Counter
	framesDropped  prometheus.Counter
	bytesReceived  prometheus.Counter
	bytesDiscarded prometheus.Counter
	recordBytes    prometheus.Histogram
	decodeDuration prometheus.Histogram
	lastActivity   prometheus.Gauge
}

// newMetrics creates and registers data-port metrics. Returns nil when no
// registry is provided (nil input = nil feature pattern).
func newMetrics(registry *metric.Registry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		framesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iwr1443",
			Subsystem: "data_port",
			Name:      "frames_decoded_total",
			Help:      "Telemetry frames decoded and emitted",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iwr1443",
			Subsystem: "data_port",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped for structural violations",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iwr1443",
			Subsystem: "data_port",
			Name:      "bytes_received_total",
			Help:      "Raw bytes delivered by the data UART",
		}),
		bytesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iwr1443",
			Subsystem: "data_port",
			Name:      "bytes_discarded_total",
			Help:      "Garbage bytes discarded while resynchronizing",
		}),
		recordBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iwr1443",
			Subsystem: "data_port",
			Name:      "record_bytes",
			Help:      "Size distribution of emitted JSON records",
			Buckets:   []float64{256, 1024, 4096, 16384, 65536, 262144},
		}),
		decodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iwr1443",
			Subsystem: "data_port",
			Name:      "decode_duration_seconds",
			Help:      "Time to decode one frame to JSON",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "iwr1443",
			Subsystem: "data_port",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received byte",
		}),
	}

	registry.RegisterCounter("data-port", "frames_decoded", metrics.framesDecoded)
	registry.RegisterCounter("data-port", "frames_dropped", metrics.framesDropped)
	registry.RegisterCounter("data-port", "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter("data-port", "bytes_discarded", metrics.bytesDiscarded)
	registry.RegisterHistogram("data-port", "record_bytes", metrics.recordBytes)
	registry.RegisterHistogram("data-port", "decode_duration", metrics.decodeDuration)
	registry.RegisterGauge("data-port", "last_activity", metrics.lastActivity)

	return metrics
}
