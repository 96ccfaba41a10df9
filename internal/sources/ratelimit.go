package sources

import (
	"sync"
	"time"
)

// quota is a fixed-window request counter. The window starts with the
// first request after the previous one elapsed.
type quota struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	count   int
	resetAt time.Time
	now     func() time.Time
}

func newQuota(limit int, window time.Duration, now func() time.Time) *quota {
	if now == nil {
		now = time.Now
	}
	return &quota{limit: limit, window: window, now: now}
}

// take consumes one request or reports when the window resets.
func (q *quota) take() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if !now.Before(q.resetAt) {
		q.count = 0
		q.resetAt = now.Add(q.window)
	}

	if q.count >= q.limit {
		return &RateLimitError{Limit: q.limit, ResetAt: q.resetAt}
	}

	q.count++
	return nil
}

// remaining returns the requests left in the current window.
func (q *quota) remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.now().Before(q.resetAt) {
		return q.limit
	}
	return q.limit - q.count
}
