// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"
)

// NewMetricsReceiver creates a [*MetricsReceiver] and registers its
// collectors with reg.
//
// The cfg argument contains the common configuration for sockpipe operations.
//
// The component argument labels all the metrics so that several pipelines
// can share the same registry.
func NewMetricsReceiver(cfg *Config, reg prometheus.Registerer, component string) (*MetricsReceiver, error) {
	labels := prometheus.Labels{"component": component}
	m := &MetricsReceiver{
		ErrClassifier: cfg.ErrClassifier,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "sockpipe",
			Subsystem:   "socket",
			Name:        "events_total",
			ConstLabels: labels,
			Help:        "Total number of socket events by kind",
		}, []string{"event"}),
		recvBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sockpipe",
			Subsystem:   "socket",
			Name:        "received_bytes_total",
			ConstLabels: labels,
			Help:        "Total number of bytes received",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "sockpipe",
			Subsystem:   "socket",
			Name:        "errors_total",
			ConstLabels: labels,
			Help:        "Total number of socket errors by class",
		}, []string{"class"}),
	}
	for _, c := range []prometheus.Collector{m.events, m.recvBytes, m.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MetricsReceiver is a [Receiver] counting transport events.
//
// MetricsReceiver never stops propagation.
type MetricsReceiver struct {
	// ErrClassifier labels the error counter.
	//
	// Set by [NewMetricsReceiver] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// PriorityValue is the priority returned by Priority.
	PriorityValue int

	events    *prometheus.CounterVec
	recvBytes prometheus.Counter
	errors    *prometheus.CounterVec
}

var _ Receiver = &MetricsReceiver{}

// Priority implements [Receiver].
func (m *MetricsReceiver) Priority() int {
	return m.PriorityValue
}

// OnSocketConnect implements [Receiver].
func (m *MetricsReceiver) OnSocketConnect(tx Transport) Propagation {
	m.events.WithLabelValues("connect").Inc()
	return Continue
}

// OnSocketRecv implements [Receiver].
func (m *MetricsReceiver) OnSocketRecv(tx Transport, data []byte, peer netip.AddrPort) Propagation {
	m.events.WithLabelValues("recv").Inc()
	m.recvBytes.Add(float64(len(data)))
	return Continue
}

// OnSocketError implements [Receiver].
func (m *MetricsReceiver) OnSocketError(tx Transport, err error) Propagation {
	m.events.WithLabelValues("error").Inc()
	m.errors.WithLabelValues(m.ErrClassifier.Classify(err)).Inc()
	return Continue
}

// OnSocketClose implements [Receiver].
func (m *MetricsReceiver) OnSocketClose(tx Transport) Propagation {
	m.events.WithLabelValues("close").Inc()
	return Continue
}
