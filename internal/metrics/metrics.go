package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskboard"

var (
	TaskOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_operations_total",
		Help:      "Task operations by name and result.",
	}, []string{"operation", "result"})

	StoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_duration_seconds",
		Help:      "Latency of task store calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	BoardReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "board_reads_total",
		Help:      "Board reads by source (store or stale cache).",
	}, []string{"source"})

	Reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_total",
		Help:      "Reminder scheduler calls by action and result.",
	}, []string{"action", "result"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveOperation counts one use case operation.
func ObserveOperation(operation string, err error) {
	TaskOperations.WithLabelValues(operation, result(err)).Inc()
}

// ObserveReminder counts one scheduler call.
func ObserveReminder(action string, err error) {
	Reminders.WithLabelValues(action, result(err)).Inc()
}

// TimeStore returns a func that records the elapsed store latency when called.
func TimeStore(operation string) func() {
	start := time.Now()
	return func() {
		StoreDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// Middleware records request latency labelled with the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
