// Package apperr defines the stable error categories from the spec's
// error-handling design, so both frontends can translate a single error
// value into their own status representation.
package apperr

import "errors"

// Sentinel categories. Wrap with fmt.Errorf("...: %w", ErrX) to attach
// detail while keeping errors.Is matching intact.
var (
	ErrValidation  = errors.New("validation error")
	ErrPermission  = errors.New("permission denied")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrCrypto      = errors.New("decrypt error")
	ErrCancelled   = errors.New("operation cancelled")
	ErrRemoteIndex = errors.New("remote vector index unavailable")
)

// HTTPStatus maps an error category to the status code the HTTP frontend
// must surface. Falls back to 500 for anything unrecognized.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return 422
	case errors.Is(err, ErrPermission):
		return 403
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrConflict):
		return 409
	case errors.Is(err, ErrCancelled):
		return 499
	case errors.Is(err, ErrRemoteIndex):
		return 503
	case errors.Is(err, ErrCrypto):
		return 500
	default:
		return 500
	}
}
