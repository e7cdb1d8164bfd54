package toolproc

import "time"

// BackoffPolicy maps a 0-based attempt number to the delay inserted before
// the next attempt. Policies are pure functions of the attempt index so retry
// timing is testable without wall-clock sleeps.
type BackoffPolicy func(attempt int) time.Duration

// LinearBackoff grows the delay by one base interval per completed attempt:
// base, 2*base, 3*base, ...
func LinearBackoff(base time.Duration) BackoffPolicy {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt+1)
	}
}

// ExponentialBackoff doubles the delay per completed attempt:
// base, 2*base, 4*base, ...
func ExponentialBackoff(base time.Duration) BackoffPolicy {
	return func(attempt int) time.Duration {
		return base << uint(attempt)
	}
}
