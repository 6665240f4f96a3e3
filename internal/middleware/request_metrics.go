package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/vitalsync/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func RequestMetrics(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			resp := &responseWriter{respWriter, http.StatusOK}

			defer func(begin time.Time) {
				labels := prometheus.Labels{
					"method": req.Method,
					"status": strconv.Itoa(resp.statusCode),
				}
				metricsManager.HistogramRequestDuration.
					With(labels).
					Observe(time.Since(begin).Seconds())
				metricsManager.CounterRequests.With(labels).Inc()
			}(time.Now())

			// handler call
			next.ServeHTTP(resp, req)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.statusCode = statusCode
}
