package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-modbus/modbus"
	"github.com/arloliu/go-modbus/server"
)

// Metrics records every call in prometheus, labeled by function code and outcome
// ("ok", "exception" or "fatal"):
//
//   - modbus_service_requests_total
//   - modbus_service_request_duration_seconds
//
// The collectors are registered on reg; an error is returned if that fails.
func Metrics(reg prometheus.Registerer) (Middleware, error) {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modbus",
			Subsystem: "service",
			Name:      "requests_total",
			Help:      "Total Modbus requests handled by the service.",
		},
		[]string{"function", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modbus",
			Subsystem: "service",
			Name:      "request_duration_seconds",
			Help:      "Modbus request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"function", "outcome"},
	)

	for _, c := range []prometheus.Collector{requests, duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return func(next server.Service) server.Service {
		return server.ServiceFunc(func(ctx context.Context, req modbus.Request) (modbus.Response, error) {
			start := time.Now()
			rsp, err := next.Call(ctx, req)

			fc := modbus.FunctionCodeOf(req).String()
			label := outcome(err)
			requests.WithLabelValues(fc, label).Inc()
			duration.WithLabelValues(fc, label).Observe(time.Since(start).Seconds())

			return rsp, err
		})
	}, nil
}
