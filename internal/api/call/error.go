package call

import (
	"VoiceBridge/pkg/response"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrNumberNotAllowed = response.NewError(http.StatusForbidden, "number not allowed")
	ErrRateLimited      = response.NewError(http.StatusTooManyRequests, "outbound call rate limit exceeded")
	ErrInvalidEvent     = response.NewError(http.StatusBadRequest, "invalid webhook event")
	ErrPlaceCallFailed  = response.NewError(http.StatusBadGateway, "failed to place outbound call")
)

var (
	// ErrCallEnded is returned by CallControl when the provider reports the
	// call is already over. It is never a failure of the conversation.
	ErrCallEnded = errors.New("call already ended")

	ErrUnsupportedEvent = errors.New("unsupported event type")
)

type RetryAfterError struct {
	RetryAfter time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%s, retry after %d seconds", ErrRateLimited.Error(), e.RetryAfterSecs())
}

func (e *RetryAfterError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfterSecs rounds up so a client honoring it never retries early.
func (e *RetryAfterError) RetryAfterSecs() int {
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}
