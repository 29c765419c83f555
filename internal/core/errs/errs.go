// Package errs defines the failure kinds an extraction can end with.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrAccessDenied            = errors.New("access denied")
	ErrUpstreamUnavailable     = errors.New("upstream unavailable")
	ErrUnsupportedFormat       = errors.New("unsupported format")
	ErrUnsupportedGeometryType = errors.New("unsupported geometry type")
	ErrReprojection            = errors.New("reprojection failure")
	ErrUnsupportedProtocol     = errors.New("unsupported protocol family")
)

// AccessDeniedError is returned when the requested layer is not advertised
// in the capabilities document served to the caller. Capabilities holds the
// raw body for diagnostics and is not part of Error().
type AccessDeniedError struct {
	Layer        string
	Capabilities string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("user does not have sufficient privileges to access the layer %q", e.Layer)
}

func (e *AccessDeniedError) Is(target error) bool { return target == ErrAccessDenied }

// Upstream wraps a failed call to the remote service.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
}

func Reprojection(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrReprojection, fmt.Sprintf(format, args...))
}

// Kind returns a short label for the failure, used for metrics and job state.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrUnsupportedGeometryType):
		return "unsupported_geometry"
	case errors.Is(err, ErrReprojection):
		return "reprojection"
	case errors.Is(err, ErrUnsupportedProtocol):
		return "unsupported_protocol"
	default:
		return "internal"
	}
}
