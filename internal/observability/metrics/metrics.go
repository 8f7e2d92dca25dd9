package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics exposes the payment counters served at /metrics.
type Metrics struct {
	invoicesCreated *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

func New() (*Metrics, error) {
	m := &Metrics{
		invoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinflow_invoices_created_total",
			Help: "Invoice creation attempts by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinflow_payment_notifications_total",
			Help: "Processed gateway notifications by resulting local state.",
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{m.invoicesCreated, m.notifications} {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordInvoiceCreated(outcome string) {
	if m == nil {
		return
	}
	m.invoicesCreated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordNotification(state string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(state).Inc()
}

var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)
