package anthropic

import "errors"

// Classified API failures. The classification exists for logging and
// endpoint messaging only; every class resolves to the same record-level
// failed transition in the pipeline.
var (
	ErrAuth             = errors.New("anthropic: authentication failed")
	ErrRateLimited      = errors.New("anthropic: rate limited")
	ErrMalformedRequest = errors.New("anthropic: malformed request")
)

func classifyStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 429:
		return ErrRateLimited
	case status == 400 || status == 413 || status == 422:
		return ErrMalformedRequest
	default:
		return nil
	}
}
