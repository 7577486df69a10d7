package framed

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/intake/internal/domain"
)

// Metrics holds Prometheus collectors for a Channel.
type Metrics struct {
	framesSent     prometheus.Counter
	framesReceived prometheus.Counter
	connects       prometheus.Counter
	busy           prometheus.Counter
	errors         *prometheus.CounterVec
}

// NewMetrics creates and registers channel metrics. A nil registerer returns
// nil, which disables recording.
func NewMetrics(reg prometheus.Registerer, channel string) *Metrics {
	if reg == nil {
		return nil
	}
	labels := prometheus.Labels{"channel": channel}
	m := &Metrics{
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "intake",
			Subsystem:   "framed",
			Name:        "frames_sent_total",
			Help:        "Frames fully written to the peer",
			ConstLabels: labels,
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "intake",
			Subsystem:   "framed",
			Name:        "frames_received_total",
			Help:        "Frames fully read from the peer",
			ConstLabels: labels,
		}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "intake",
			Subsystem:   "framed",
			Name:        "connects_total",
			Help:        "Successful connects, including reconnects",
			ConstLabels: labels,
		}),
		busy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "intake",
			Subsystem:   "framed",
			Name:        "busy_total",
			Help:        "Sends that could not make progress before the write timeout",
			ConstLabels: labels,
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "intake",
			Subsystem:   "framed",
			Name:        "errors_total",
			Help:        "Transport failures by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
	}
	reg.MustRegister(m.framesSent, m.framesReceived, m.connects, m.busy, m.errors)
	return m
}

func (m *Metrics) sent() {
	if m != nil {
		m.framesSent.Inc()
	}
}

func (m *Metrics) received() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *Metrics) connected() {
	if m != nil {
		m.connects.Inc()
	}
}

func (m *Metrics) wouldBlock() {
	if m != nil {
		m.busy.Inc()
	}
}

func (m *Metrics) failed(k domain.Kind) {
	if m != nil {
		m.errors.WithLabelValues(k.String()).Inc()
	}
}
