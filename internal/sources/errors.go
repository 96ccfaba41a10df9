package sources

import (
	"fmt"
	"time"
)

// FetchError is returned when the upstream API is unreachable or answers
// with an error payload.
type FetchError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return "failed to fetch ads: " + e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned when the local request quota is exhausted.
// No network attempt is made.
type RateLimitError struct {
	Limit   int
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per window, resets at %s",
		e.Limit, e.ResetAt.Format(time.RFC3339))
}
