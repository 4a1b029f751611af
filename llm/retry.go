package llm

import (
	"math/rand"
	"time"

	"github.com/c360studio/sleuthbench/model"
)

// RetryConfig holds the retry policy for worker invocations. It is data, not
// inline control flow: the backoff schedule is independently testable by
// injecting a sleep function on the Client.
type RetryConfig struct {
	// MaxAttempts is the attempt budget per invocation.
	MaxAttempts int

	// ClassMaxAttempts overrides the budget per worker class. Constrained
	// workers need a deeper budget to escape empty-output loops.
	ClassMaxAttempts map[model.Class]int

	// EmptyBackoff is the fixed pause after a zero response.
	EmptyBackoff time.Duration

	// TimeoutBackoff is the slightly longer pause after a timeout.
	TimeoutBackoff time.Duration

	// TransportBackoffBase is the initial backoff after a transport error,
	// doubled by TransportBackoffMultiplier per attempt up to MaxBackoff.
	TransportBackoffBase       time.Duration
	TransportBackoffMultiplier float64
	MaxBackoff                 time.Duration

	// RequestTimeout is the default per-call budget when the endpoint does
	// not configure its own. Transcripts are large; budgets are generous.
	RequestTimeout time.Duration
}

// DefaultRetryConfig returns the retry defaults observed to cope with
// intermittently unresponsive local workers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		ClassMaxAttempts: map[model.Class]int{
			model.ClassConstrained: 10,
		},
		EmptyBackoff:               2 * time.Second,
		TimeoutBackoff:             3 * time.Second,
		TransportBackoffBase:       2 * time.Second,
		TransportBackoffMultiplier: 2.0,
		MaxBackoff:                 30 * time.Second,
		RequestTimeout:             5 * time.Minute,
	}
}

// AttemptsFor returns the attempt budget for a worker class.
func (c RetryConfig) AttemptsFor(class model.Class) int {
	if n, ok := c.ClassMaxAttempts[class]; ok && n > 0 {
		return n
	}
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return 1
}

// transportBackoff computes the exponential backoff with jitter for a
// zero-based attempt index. Jitter prevents synchronized retries across
// batch runs sharing an endpoint.
func (c RetryConfig) transportBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.TransportBackoffMultiplier
	}

	backoff := time.Duration(float64(c.TransportBackoffBase) * multiplier)
	if c.MaxBackoff > 0 && backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}
