package tracer

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type httpInstruments struct {
	requestsTotal   metric.Int64Counter
	durationSeconds metric.Float64Histogram
}

var (
	httpMetrics     httpInstruments
	httpMetricsOnce sync.Once
)

func initHTTPMetrics() {
	httpMetricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("itinerary-sync/http")
		// instrument creation only fails on invalid names; the no-op fallbacks keep serving
		httpMetrics.requestsTotal, _ = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests served"),
		)
		httpMetrics.durationSeconds, _ = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
	})
}

// HTTPMetrics records request count and latency labelled by the matched chi route
// pattern, so ids in the path do not explode cardinality.
func HTTPMetrics(next http.Handler) http.Handler {
	initHTTPMetrics()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		attrs := metric.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", ww.Status()),
		)
		if httpMetrics.requestsTotal != nil {
			httpMetrics.requestsTotal.Add(r.Context(), 1, attrs)
		}
		if httpMetrics.durationSeconds != nil {
			httpMetrics.durationSeconds.Record(r.Context(), time.Since(start).Seconds(), attrs)
		}
	})
}
