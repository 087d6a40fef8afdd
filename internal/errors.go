package brewmap

import "errors"

// Sentinel errors for the brewmap domain.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrBadRequest      = errors.New("bad request")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstream        = errors.New("upstream error")
	ErrMalformedBounds = errors.New("malformed bounds")

	// ErrSuperseded marks a request that was replaced by a newer one before
	// its upstream fetch resolved. It is a control-flow outcome, not a
	// failure; callers should drop the result without alerting.
	ErrSuperseded = errors.New("request superseded")
)
