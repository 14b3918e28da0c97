// Package metrics provides Prometheus instrumentation for the BehaviorGuard service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "behaviorguard",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "behaviorguard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// InferencesTotal counts risk inferences by which model served them.
	// model_source is "user", "global", or "fallback".
	InferencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "behaviorguard",
			Name:      "inferences_total",
			Help:      "Total risk inferences by model source.",
		},
		[]string{"model_source"},
	)

	// InferenceDuration observes end-to-end inference latency.
	InferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "behaviorguard",
		Name:      "inference_duration_seconds",
		Help:      "Risk inference duration in seconds (extract through score).",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	})

	// RiskScores observes the distribution of emitted risk scores.
	RiskScores = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "behaviorguard",
		Name:      "risk_score",
		Help:      "Distribution of risk scores returned to callers.",
		Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	// ModelLoadsTotal counts checkpoint load attempts by result
	// (success, invalid, error).
	ModelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "behaviorguard",
			Name:      "model_loads_total",
			Help:      "Total model checkpoint load attempts by result.",
		},
		[]string{"result"},
	)

	// ModelCacheSize tracks the number of currently cached models.
	ModelCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "behaviorguard",
		Name:      "model_cache_size",
		Help:      "Number of model artifacts currently cached.",
	})

	// WatcherEventsTotal counts filesystem notifications seen by the model watcher.
	WatcherEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "behaviorguard",
		Name:      "model_watcher_events_total",
		Help:      "Total checkpoint create/write notifications observed.",
	})

	// AssessmentWritesTotal counts assessment persistence attempts by result
	// (success, error, circuit_open).
	AssessmentWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "behaviorguard",
			Name:      "assessment_writes_total",
			Help:      "Total assessment store writes by result.",
		},
		[]string{"result"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "behaviorguard",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "behaviorguard", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "behaviorguard", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "behaviorguard", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "behaviorguard", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		InferencesTotal,
		InferenceDuration,
		RiskScores,
		ModelLoadsTotal,
		ModelCacheSize,
		WatcherEventsTotal,
		AssessmentWritesTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and the runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits when
// ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
