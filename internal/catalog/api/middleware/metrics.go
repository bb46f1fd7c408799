package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/backmon-io/backmon/pkg/metrics"
)

// Metrics returns middleware that records request count, duration and
// in-flight gauge for every request. Requests are labeled with the
// matched chi route pattern rather than the raw URL to keep metric
// cardinality bounded.
//
// A nil HTTPMetrics disables collection.
func Metrics(m metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.RecordRequestStart()
			defer m.RecordRequestEnd()

			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			// RoutePattern is only complete after the router has run.
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			m.RecordRequest(r.Method, route, ww.Status(), time.Since(start))
		})
	}
}
