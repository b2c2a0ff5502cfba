// Package metrics exposes acquisition and publish counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_glove/internal/publish"
)

// Metrics is a private registry with the glove's series.
type Metrics struct {
	Registry *prometheus.Registry

	Cycles              prometheus.Counter
	ReadErrors          prometheus.Counter
	PublishOK           prometheus.Counter
	PublishFailed       prometheus.Counter
	ReconnectAttempts   prometheus.Counter
	ConsecutiveFailures prometheus.Gauge
	Channels            prometheus.Gauge
	PayloadBytes        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glove", Name: "cycles_total", Help: "Completed acquisition cycles.",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glove", Name: "sensor_read_errors_total", Help: "Failed sensor burst reads.",
		}),
		PublishOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glove", Name: "publish_success_total", Help: "Successful publishes.",
		}),
		PublishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glove", Name: "publish_failure_total", Help: "Failed publishes.",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glove", Name: "reconnect_attempts_total", Help: "Failed broker connect attempts.",
		}),
		ConsecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "glove", Name: "publish_consecutive_failures", Help: "Current run of failed publishes.",
		}),
		Channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "glove", Name: "populated_channels", Help: "Sensor channels in the acquisition loop.",
		}),
		PayloadBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "glove", Name: "payload_bytes", Help: "Size of the last published payload.",
		}),
	}
	m.Registry.MustRegister(
		m.Cycles, m.ReadErrors, m.PublishOK, m.PublishFailed,
		m.ReconnectAttempts, m.ConsecutiveFailures, m.Channels, m.PayloadBytes,
	)
	return m
}

// ObservePublish records one gateway outcome.
func (m *Metrics) ObservePublish(o publish.Outcome) {
	if o.OK {
		m.PublishOK.Inc()
	} else {
		m.PublishFailed.Inc()
	}
	m.ConsecutiveFailures.Set(float64(o.Failures))
	m.PayloadBytes.Set(float64(o.Bytes))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve starts a /metrics listener on addr in the background.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}
