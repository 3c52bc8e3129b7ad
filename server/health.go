package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aep/mintdb/db"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry so it can be accessed from middleware
var promRegistry *prometheus.Registry

// HTTP request metrics
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	promRegistry = prometheus.NewRegistry()

	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRegistry.MustRegister(collectors.NewGoCollector())

	promRegistry.MustRegister(httpRequestsTotal)
	promRegistry.MustRegister(httpRequestDuration)

	if err := db.RegisterMetrics(promRegistry); err != nil {
		panic(err)
	}
}

// statsHandler serves /healthz, backed by a ping of the partition's host
// store, and /metrics.
func statsHandler(h *db.Handle) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		err := h.Ping()
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(err.Error()))
			return
		}

		w.Write([]byte("OK"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	return mux
}

func newStatsServer(addr string, h *db.Handle) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           statsHandler(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// PrometheusMiddleware records HTTP request metrics. Requests are labeled
// by route so keys in the path do not create new series.
func PrometheusMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			// let the error handler write the response so the status is final
			c.Error(err)
		}

		duration := time.Since(start).Seconds()
		status := fmt.Sprintf("%d", c.Response().Status)
		method := c.Request().Method
		path := c.Path()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)

		return nil
	}
}
