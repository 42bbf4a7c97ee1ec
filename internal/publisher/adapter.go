package publisher

import "context"

// Error codes attached to failed publish attempts. Retryable codes feed the
// dispatcher's backoff; fatal codes end the item immediately.
const (
	CodeAuthFailed      = "AUTH_FAILED"
	CodeContentTooLong  = "CONTENT_TOO_LONG"
	CodeContentRejected = "CONTENT_REJECTED"
	CodeDuplicatePost   = "DUPLICATE_POST"
	CodeRateLimited     = "RATE_LIMITED"
	CodePlatformError   = "PLATFORM_ERROR"
	CodeNetworkError    = "NETWORK_ERROR"
)

// Request carries everything an adapter needs for one publish attempt. The
// idempotency key is stable across attempts for the same content item, so an
// adapter that supports deduplication can use it to make retries safe.
type Request struct {
	FounderID      string
	ContentID      string
	Text           string
	IdempotencyKey string
}

// Result reports a successful publish.
type Result struct {
	PlatformID string
}

// Error is a classified publish failure.
type Error struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func retryableError(code, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: true}
}

func fatalError(code, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: false}
}

// Adapter publishes content to an external platform. Publish returns either
// a Result or an *Error; any other error type is treated as retryable.
type Adapter interface {
	Platform() string
	Publish(ctx context.Context, req Request) (*Result, error)
}
