// Package backoff computes retry delays for failed sync operations.
package backoff

import (
	"time"

	"github.com/binarjoin/syncengine/models"
)

// Policy is an exponential backoff curve: delay(attempt) doubles from
// Initial until it reaches Cap.
type Policy struct {
	Initial time.Duration
	Cap     time.Duration
}

// Default curves. Full sync cycles back off slowly; fine-grained
// per-request retries (token refresh and the like) start fast and cap low.
func DefaultCycle() Policy {
	return Policy{Initial: 2 * time.Second, Cap: 30 * time.Second}
}

func DefaultRequest() Policy {
	return Policy{Initial: 100 * time.Millisecond, Cap: 5 * time.Second}
}

// New returns a policy with the given curve, substituting the cycle
// defaults for non-positive parameters.
func New(initial, cap time.Duration) Policy {
	def := DefaultCycle()
	if initial <= 0 {
		initial = def.Initial
	}
	if cap <= 0 {
		cap = def.Cap
	}
	if cap < initial {
		cap = initial
	}
	return Policy{Initial: initial, Cap: cap}
}

// Delay computes min(Cap, Initial * 2^attempt) for attempt >= 0.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := p.Initial
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.Cap || delay <= 0 { // <= 0 guards overflow
			return p.Cap
		}
	}
	if delay > p.Cap {
		return p.Cap
	}
	return delay
}

// RetryOnTick reports whether a failure of the given class should be
// retried by the periodic scheduler at all. Network failures wait for the
// offline-to-online transition instead of polling, and validation failures
// are terminal: retrying cannot fix a rejected payload.
func RetryOnTick(class models.ErrorClass) bool {
	switch class {
	case models.ErrorClassNetwork, models.ErrorClassValidation:
		return false
	default:
		return true
	}
}

// ForClass maps an error class to its retry curve: timeouts retry on the
// fast per-request curve, everything else on the standard cycle curve.
func ForClass(class models.ErrorClass, cycle Policy) Policy {
	if class == models.ErrorClassTimeout {
		return DefaultRequest()
	}
	return cycle
}
