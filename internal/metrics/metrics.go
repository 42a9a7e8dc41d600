// Package metrics exposes Prometheus counters for the workbench server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	requestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "workbench_requests_total",
		Help: "Number of handled requests by route and status",
	}, []string{"route", "status"})

	requestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workbench_request_duration_seconds",
		Help:    "Request handling latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	galleryUpstreamStatus = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "workbench_gallery_upstream_status_total",
		Help: "Status codes relayed from the gallery upstream",
	}, []string{"status"})
)

// RecordRequest records one completed request.
func RecordRequest(route string, status int, seconds float64) {
	code := strconv.Itoa(status)
	requestsTotal.WithLabelValues(route, code).Inc()
	requestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordGalleryStatus records a status code relayed from the gallery upstream.
func RecordGalleryStatus(status int) {
	galleryUpstreamStatus.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Handler returns the Prometheus scrape endpoint for this registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
