package agent

import "time"

const (
	// BaseRetryDelay is the delay before the first retry of a failed send
	BaseRetryDelay = 5 * time.Second

	// MaxRetryDelay caps the exponential growth of retry delays
	MaxRetryDelay = 300 * time.Second
)

// RetryDelay returns the delay to wait before the next attempt of an
// operation that has already failed retryCount times. The delay doubles per
// failure and never exceeds MaxRetryDelay.
func RetryDelay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}

	delay := BaseRetryDelay
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	if delay > MaxRetryDelay {
		return MaxRetryDelay
	}
	return delay
}

// NextAttemptAt returns the earliest time the operation may be retried,
// given when it last failed and how many times it has failed.
func NextAttemptAt(lastAttempt time.Time, retryCount int) time.Time {
	return lastAttempt.Add(RetryDelay(retryCount))
}
