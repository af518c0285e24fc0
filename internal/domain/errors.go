package domain

import "errors"

// Failure classes exposed by the summarizer boundary. Only these two warrant
// a retry; everything else is terminal for the item.
var (
	ErrRateLimited   = errors.New("summarizer rate limited")
	ErrQuotaExceeded = errors.New("summarizer quota exceeded")
)

// IsRetryable reports whether the summarizer error is a transient
// quota/rate condition.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExceeded)
}
