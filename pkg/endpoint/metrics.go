package endpoint

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus collectors for an Endpoint.
type Metrics struct {
	eventsReceived      prometheus.Counter
	eventsQueued        prometheus.Counter
	eventsOverflowed    prometheus.Counter
	eventsDropped       prometheus.Counter
	backpressureRetries prometheus.Counter
	socketErrors        prometheus.Counter
}

// NewMetrics creates and registers endpoint metrics. A nil registerer returns
// nil and the endpoint records nothing.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "endpoint",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		eventsReceived:      counter("events_received_total", "Datagrams delivered by the reactor"),
		eventsQueued:        counter("events_queued_total", "Events pushed onto the event queue"),
		eventsOverflowed:    counter("events_overflowed_total", "Events written to the overflow sink in degrade mode"),
		eventsDropped:       counter("events_dropped_total", "Events lost because the overflow sink was unavailable"),
		backpressureRetries: counter("backpressure_retries_total", "Push attempts repeated because the queue was full"),
		socketErrors:        counter("socket_errors_total", "Errors reported by the datagram socket"),
	}
	reg.MustRegister(
		m.eventsReceived,
		m.eventsQueued,
		m.eventsOverflowed,
		m.eventsDropped,
		m.backpressureRetries,
		m.socketErrors,
	)
	return m
}

func (m *Metrics) received() {
	if m != nil {
		m.eventsReceived.Inc()
	}
}

func (m *Metrics) queued() {
	if m != nil {
		m.eventsQueued.Inc()
	}
}

func (m *Metrics) overflowed() {
	if m != nil {
		m.eventsOverflowed.Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.eventsDropped.Inc()
	}
}

func (m *Metrics) retried() {
	if m != nil {
		m.backpressureRetries.Inc()
	}
}

func (m *Metrics) socketError() {
	if m != nil {
		m.socketErrors.Inc()
	}
}
