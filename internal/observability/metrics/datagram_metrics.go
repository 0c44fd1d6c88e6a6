package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// DatagramMetrics holds Prometheus instruments for the UDP listener.
type DatagramMetrics struct {
	received prometheus.Counter
	bytes    prometheus.Counter
	dropped  *prometheus.CounterVec
}

var (
	datagramOnce    sync.Once
	datagramMetrics *DatagramMetrics
)

// NewDatagramMetrics registers the datagram instruments on the default registerer once per process.
func NewDatagramMetrics() *DatagramMetrics {
	datagramOnce.Do(func() {
		datagramMetrics = NewDatagramMetricsWith(prometheus.DefaultRegisterer)
	})
	return datagramMetrics
}

// NewDatagramMetricsWith registers the datagram instruments on reg.
func NewDatagramMetricsWith(reg prometheus.Registerer) *DatagramMetrics {
	m := &DatagramMetrics{
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "datagrams_received_total",
			Help: "Datagrams read from the UDP socket",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "datagram_bytes_total",
			Help: "Bytes read from the UDP socket",
		}),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "datagrams_dropped_total",
				Help: "Datagrams dropped by reason",
			},
			[]string{"reason"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.received, m.bytes, m.dropped)
	}
	return m
}

// Received counts one datagram of n bytes.
func (m *DatagramMetrics) Received(n int) {
	if m == nil {
		return
	}
	m.received.Inc()
	if n > 0 {
		m.bytes.Add(float64(n))
	}
}

// Dropped counts one discarded datagram.
func (m *DatagramMetrics) Dropped(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// DroppedCount reports how many datagrams were dropped for reason.
func (m *DatagramMetrics) DroppedCount(reason string) float64 {
	if m == nil {
		return 0
	}
	var out dto.Metric
	if err := m.dropped.WithLabelValues(reason).Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}
