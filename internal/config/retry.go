package config

import "time"

// RetryConfig centralizes the adapter retry policy.
//
// Only transient failures (rate_limited, transport, timeout, empty) are
// retried. Backoff is exponential from BackoffBase, capped at BackoffMax.
// The shortest timeout in the chain wins: a retry never outlives the
// per-request budget.
type RetryConfig struct {
	// MaxRetries is the number of automatic retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`

	// BackoffBase is the delay before the first retry.
	BackoffBase string `yaml:"backoff_base"`

	// BackoffMax caps the delay between retries.
	BackoffMax string `yaml:"backoff_max"`
}

// DefaultRetryConfig returns one retry, 1s base, 8s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  1,
		BackoffBase: "1s",
		BackoffMax:  "8s",
	}
}

// GetBackoffBase returns the base delay.
func (r RetryConfig) GetBackoffBase() time.Duration {
	d, err := time.ParseDuration(r.BackoffBase)
	if err != nil || d < 0 {
		return time.Second
	}
	return d
}

// GetBackoffMax returns the delay cap.
func (r RetryConfig) GetBackoffMax() time.Duration {
	d, err := time.ParseDuration(r.BackoffMax)
	if err != nil || d < 0 {
		return 8 * time.Second
	}
	return d
}

// Validate checks the retry policy.
func (r RetryConfig) Validate() error {
	if r.MaxRetries < 0 {
		return fieldErr("retry.max_retries", "must not be negative")
	}
	if _, err := time.ParseDuration(r.BackoffBase); err != nil {
		return fieldErr("retry.backoff_base", "invalid duration %q", r.BackoffBase)
	}
	if _, err := time.ParseDuration(r.BackoffMax); err != nil {
		return fieldErr("retry.backoff_max", "invalid duration %q", r.BackoffMax)
	}
	return nil
}
