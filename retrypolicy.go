package prioq

import (
	"time"
)

const (
	defaultAttempts     = 5
	defaultInitialRetry = 200 * time.Millisecond
	defaultMaxRetry     = 5 * time.Second
)

// RetryPolicy describes how many times and how often something is retried.
// Zero values are treated as "use defaults".
type RetryPolicy struct {
	// Attempts is the maximum number of tries.
	Attempts int

	// Initial is the first backoff duration.
	Initial time.Duration

	// Max is the cap for backoff duration.
	Max time.Duration
}

// GetDefaultRP returns a pointer to the default retry policy.
func GetDefaultRP() *RetryPolicy {
	rp := RetryPolicy{
		Attempts: defaultAttempts,
		Initial:  defaultInitialRetry,
		Max:      defaultMaxRetry,
	}
	return &rp
}

// WithDefaults overrides every zero field of rp with the default.
func (rp RetryPolicy) WithDefaults() RetryPolicy {
	def := GetDefaultRP()
	if rp.Attempts <= 0 {
		rp.Attempts = def.Attempts
	}
	if rp.Initial <= 0 {
		rp.Initial = def.Initial
	}
	if rp.Max <= 0 {
		rp.Max = def.Max
	}
	return rp
}
