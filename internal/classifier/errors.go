package classifier

import "errors"

// Failure modes of the remote classification call. Callers distinguish them
// with errors.Is; only ErrModelLoading is ever retried, and only inside the
// gateway itself.
var (
	// ErrMissingToken means no API token is configured. Detected before any
	// network attempt.
	ErrMissingToken = errors.New("inference API token is not configured")

	// ErrInvalidToken is returned on HTTP 401.
	ErrInvalidToken = errors.New("invalid inference API token")

	// ErrRateLimited is returned on HTTP 429. The gateway never retries it.
	ErrRateLimited = errors.New("inference API rate limit exceeded")

	// ErrModelLoading means the model reported a cold start on every attempt
	// the gateway was willing to make.
	ErrModelLoading = errors.New("model is still loading")

	// ErrModelUnavailable covers a non-loading 503 or any other unexpected
	// status.
	ErrModelUnavailable = errors.New("model unavailable")
)
