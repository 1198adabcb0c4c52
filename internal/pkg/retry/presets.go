package retry

import "time"

// Category presets. They differ in attempt counts, delay bounds and
// which error classes are retryable; auth failures are never retried
// by any of them.

// DatabaseConfig suits short idempotent reads against storage-backed endpoints.
func DatabaseConfig() Config {
	return Config{
		MaxRetries:    3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2,
		Jitter:        true,
		RetryIf:       RetryTransient,
	}
}

// APIConfig is the default for interactive REST calls.
func APIConfig() Config {
	return Config{
		MaxRetries:    2,
		BaseDelay:     250 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2,
		Jitter:        true,
		RetryIf:       RetryTransient,
	}
}

// AuthConfig retries only transport failures; a 401/403 answer is final.
func AuthConfig() Config {
	return Config{
		MaxRetries:    1,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2,
		Jitter:        false,
		RetryIf:       RetryNetworkOnly,
	}
}

// CriticalConfig is for one-shot state-changing calls worth fighting for.
func CriticalConfig() Config {
	return Config{
		MaxRetries:    5,
		BaseDelay:     200 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
		Jitter:        true,
		RetryIf:       RetryTransient,
	}
}

// BackgroundConfig is patient: heartbeats and other non-interactive work.
func BackgroundConfig() Config {
	return Config{
		MaxRetries:    4,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
		Jitter:        true,
		RetryIf:       RetryTransient,
	}
}
