package metrics

import (
	"time"
)

// HTTPMetrics provides observability for the REST API.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
type HTTPMetrics interface {
	// RecordRequest records a completed HTTP request.
	//
	// Parameters:
	//   - method: HTTP method (e.g. "GET", "POST")
	//   - route: Matched route pattern (e.g. "/api/v1/jobs/{id}")
	//   - status: HTTP status code of the response
	//   - duration: Time taken to serve the request
	RecordRequest(method string, route string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight request gauge.
	RecordRequestStart()

	// RecordRequestEnd decrements the in-flight request gauge.
	RecordRequestEnd()
}
