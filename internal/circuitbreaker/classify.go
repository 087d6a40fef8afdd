package circuitbreaker

import (
	"context"
	"errors"
	"net"
	"os"
)

// httpStatusError is an interface for errors carrying an HTTP status code.
// overpass.APIError satisfies it.
type httpStatusError interface {
	HTTPStatus() int
}

// ClassifyError returns the error weight for circuit breaker tracking.
//
// Weights:
//   - timeout (deadline exceeded) -> 1.5
//   - 429 (mirror load shedding) -> 0.5
//   - 5xx and Overpass remark errors -> 1.0
//   - other 4xx -> 0.0 (bad query, not the mirror's fault)
//   - network errors -> 1.0
//   - nil -> 0.0
//
// context.Canceled is weight 0: a superseded viewport request says nothing
// about mirror health.
func ClassifyError(err error) float64 {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return 1.5
	}

	var he httpStatusError
	if errors.As(err, &he) {
		return classifyStatus(he.HTTPStatus())
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return 1.0
	}

	// Generic errors (e.g. connection refused) -> treat as mirror fault.
	return 1.0
}

// classifyStatus returns the error weight for an HTTP status code.
// Overpass remark errors arrive as status 200 and weigh like a 5xx.
func classifyStatus(code int) float64 {
	switch {
	case code == 200:
		return 1.0
	case code == 429:
		return 0.5
	case code >= 500:
		return 1.0
	default:
		return 0.0
	}
}
