package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/scoredist/internal/adapters/repository"
	"github.com/okian/scoredist/internal/domain/gmm"
	"github.com/okian/scoredist/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrServe        = errors.New("request failed")
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// KindError tags an error with the API operation that produced it and a
// sentinel kind callers can match with errors.Is.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of kind for op.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind wraps err as kind for op.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// classify maps an error to a status code and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ErrBackpressure), errors.Is(err, model.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, gmm.ErrEmptySample):
		return http.StatusBadRequest, "empty_sample"
	case errors.Is(err, gmm.ErrNonFiniteSample):
		return http.StatusBadRequest, "non_finite_sample"
	case errors.Is(err, model.ErrSampleTooLarge):
		return http.StatusBadRequest, "sample_too_large"
	case errors.Is(err, gmm.ErrInvalidComponentCount):
		return http.StatusBadRequest, "invalid_component_count"
	case errors.Is(err, gmm.ErrInvalidParameter), errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, gmm.ErrComponentCollapse):
		return http.StatusUnprocessableEntity, "component_collapse"
	case errors.Is(err, gmm.ErrPercentileOutOfRange):
		return http.StatusUnprocessableEntity, "percentile_out_of_range"
	case errors.Is(err, model.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
