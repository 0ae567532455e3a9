package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "modbus_server"

// RegisterMetrics exports m on reg as prometheus counters and gauges.
//
// constLabels are attached to every exported metric; pass nil when a single server is
// registered.
func RegisterMetrics(reg prometheus.Registerer, m *ServerMetrics, constLabels prometheus.Labels) error {
	counter := func(name, help string, fn func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, func() float64 { return float64(fn()) })
	}

	collectors := []prometheus.Collector{
		counter("connections_accepted_total", "Connections accepted and served.", m.ConnAcceptedCount.Load),
		counter("connections_rejected_total", "Connections closed by the connection limit.", m.ConnRejectedCount.Load),
		counter("factory_errors_total", "Connections closed because the service factory failed.", m.FactoryErrCount.Load),
		counter("requests_total", "Request frames read.", m.RequestCount.Load),
		counter("responses_total", "Response frames written.", m.ResponseCount.Load),
		counter("exceptions_total", "Exception responses written.", m.ExceptionCount.Load),
		counter("fatal_errors_total", "Connections closed by a fatal error.", m.FatalErrCount.Load),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "connections_active",
			Help:        "Connections being served.",
			ConstLabels: constLabels,
		}, func() float64 { return float64(m.ConnActiveGauge.Load()) }),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}
