// Package middleware contains the Gin middleware shared by the webhook and
// admin routes.
//
// This file exposes Prometheus HTTP instrumentation. Labels are kept bounded:
// path is the registered route (c.FullPath()), falling back to the raw path
// only for unmatched requests, and status is the numeric code.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Webhook batches wait for generation, so buckets reach a minute.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	webhookBodyBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_request_body_bytes",
			Help:    "Size of webhook delivery bodies in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 7), // 256B..1MiB
		},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, webhookBodyBytes)
}

// Metrics records request counts, latency and in-flight concurrency, and
// the body size of webhook deliveries.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if path == "/webhook" && method == "POST" && c.Request.ContentLength >= 0 {
			webhookBodyBytes.Observe(float64(c.Request.ContentLength))
		}
	}
}
