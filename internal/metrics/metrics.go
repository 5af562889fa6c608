// Package metrics exposes bridge counters and gauges to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame results used as the "result" label of greeac_frames_received_total.
const (
	ResultOK       = "ok"
	ResultChecksum = "checksum"
	ResultSync     = "sync"
	ResultNoise    = "noise"
	ResultError    = "error"
)

// Send kinds used as the "kind" label of greeac_frames_sent_total.
const (
	SendControl  = "control"
	SendPeriodic = "periodic"
)

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics are the bridge metrics. A nil *AppMetrics is valid and records nothing.
type AppMetrics struct {
	FramesReceived     *prometheus.CounterVec // labels: result
	FramesSent         *prometheus.CounterVec // labels: kind
	UnknownValues      *prometheus.CounterVec // labels: field
	TransportErrors    prometheus.Counter
	TargetTemperature  prometheus.Gauge
	CurrentTemperature prometheus.Gauge
	WSClients          prometheus.Gauge
}

// NewAppMetrics registers and returns the bridge metrics.
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greeac_frames_received_total",
			Help: "UART frames read from the indoor unit by decode result.",
		}, []string{"result"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greeac_frames_sent_total",
			Help: "Command frames written to the indoor unit.",
		}, []string{"kind"}),
		UnknownValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greeac_unknown_values_total",
			Help: "Decoded frames carrying an unrecognised mode or fan value.",
		}, []string{"field"}),
		TransportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greeac_transport_errors_total",
			Help: "Serial read or write failures.",
		}),
		TargetTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greeac_target_temperature_celsius",
			Help: "Target temperature last reported by the unit.",
		}),
		CurrentTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greeac_current_temperature_celsius",
			Help: "Indoor temperature last reported by the unit.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greeac_websocket_clients",
			Help: "Connected WebSocket clients.",
		}),
	}
	reg.MustRegister(
		m.FramesReceived, m.FramesSent, m.UnknownValues, m.TransportErrors,
		m.TargetTemperature, m.CurrentTemperature, m.WSClients,
	)
	return m
}

// FrameReceived counts one inbound frame.
func (m *AppMetrics) FrameReceived(result string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(result).Inc()
}

// FrameSent counts one outbound frame.
func (m *AppMetrics) FrameSent(kind string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(kind).Inc()
}

// UnknownValue counts one unrecognised field value.
func (m *AppMetrics) UnknownValue(field string) {
	if m == nil {
		return
	}
	m.UnknownValues.WithLabelValues(field).Inc()
}

// TransportError counts one serial failure.
func (m *AppMetrics) TransportError() {
	if m == nil {
		return
	}
	m.TransportErrors.Inc()
}

// Temperatures records the last reported target and indoor temperatures.
func (m *AppMetrics) Temperatures(target, current int) {
	if m == nil {
		return
	}
	m.TargetTemperature.Set(float64(target))
	m.CurrentTemperature.Set(float64(current))
}

// ClientConnected adjusts the WebSocket client gauge by delta.
func (m *AppMetrics) ClientConnected(delta int) {
	if m == nil {
		return
	}
	m.WSClients.Add(float64(delta))
}
