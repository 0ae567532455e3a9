package server

import (
	"sync/atomic"
)

// ServerMetrics contains atomic metrics of a server.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc, see RegisterMetrics.
type ServerMetrics struct {
	// ConnAcceptedCount indicates the number of connections accepted and served.
	ConnAcceptedCount atomic.Uint64
	// ConnRejectedCount indicates the number of connections closed because of the connection limit.
	ConnRejectedCount atomic.Uint64
	// FactoryErrCount indicates the number of connections closed because the service factory failed.
	FactoryErrCount atomic.Uint64
	// ConnActiveGauge indicates the number of connections being served.
	ConnActiveGauge atomic.Int64

	// RequestCount indicates the number of request frames read.
	RequestCount atomic.Uint64
	// ResponseCount indicates the number of response frames written, exceptions included.
	ResponseCount atomic.Uint64
	// ExceptionCount indicates the number of exception responses written.
	ExceptionCount atomic.Uint64
	// FatalErrCount indicates the number of connections closed by a fatal error.
	FatalErrCount atomic.Uint64
}

func (m *ServerMetrics) incConnAcceptedCount() {
	m.ConnAcceptedCount.Add(1)
}

func (m *ServerMetrics) incConnRejectedCount() {
	m.ConnRejectedCount.Add(1)
}

func (m *ServerMetrics) incFactoryErrCount() {
	m.FactoryErrCount.Add(1)
}

func (m *ServerMetrics) incConnActiveGauge() {
	m.ConnActiveGauge.Add(1)
}

func (m *ServerMetrics) decConnActiveGauge() {
	m.ConnActiveGauge.Add(-1)
}

func (m *ServerMetrics) incRequestCount() {
	m.RequestCount.Add(1)
}

func (m *ServerMetrics) incResponseCount(exception bool) {
	m.ResponseCount.Add(1)
	if exception {
		m.ExceptionCount.Add(1)
	}
}

func (m *ServerMetrics) incFatalErrCount() {
	m.FatalErrCount.Add(1)
}
