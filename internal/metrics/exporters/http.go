// Package exporters serves the session metrics over Prometheus scrape and SSE.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler serves the default registry, which holds the illuminode_session_*
// collectors registered by package metrics.
func HTTPHandler() http.Handler {
	return Handler(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// Handler serves g in the Prometheus text or OpenMetrics format. A collector
// that fails is reported in the response while the rest are still written.
// Scrape counts are recorded on reg.
func Handler(reg prometheus.Registerer, g prometheus.Gatherer) http.Handler {
	return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
}
