package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the comment channel collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Connections      prometheus.Gauge
	Messages         *prometheus.CounterVec
	Broadcasts       *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
	Rejections       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taskflow_ws_connections",
			Help: "Current number of registered comment channel connections",
		}),
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_ws_messages_total",
			Help: "Total number of inbound comment channel messages by type and result",
		}, []string{"type", "result"}),
		Broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_ws_broadcasts_total",
			Help: "Total number of task broadcasts handled by this instance",
		}, []string{"type"}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskflow_ws_delivery_failures_total",
			Help: "Total number of broadcast sends that failed and pruned a connection",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskflow_ws_rejections_total",
			Help: "Total number of handshakes closed with a policy violation",
		}, []string{"reason"}),
	}
}

func (m *Metrics) setConnections(n int) {
	if m == nil || m.Connections == nil {
		return
	}
	m.Connections.Set(float64(n))
}

func (m *Metrics) recordMessage(msgType string, err error) {
	if m == nil || m.Messages == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Messages.WithLabelValues(msgType, result).Inc()
}

func (m *Metrics) recordBroadcast(msgType string) {
	if m == nil || m.Broadcasts == nil {
		return
	}
	m.Broadcasts.WithLabelValues(msgType).Inc()
}

func (m *Metrics) recordDeliveryFailures(n int) {
	if m == nil || m.DeliveryFailures == nil || n == 0 {
		return
	}
	m.DeliveryFailures.Add(float64(n))
}

func (m *Metrics) recordRejection(reason string) {
	if m == nil || m.Rejections == nil {
		return
	}
	m.Rejections.WithLabelValues(reason).Inc()
}
