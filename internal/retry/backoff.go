// Package retry provides the shared exponential backoff policy used by the
// outbox publisher, the consumer-driven re-queue path, and the timeout scanner.
package retry

import (
	"math/rand/v2"
	"time"
)

// maxShift bounds the exponent so base<<retryCount cannot overflow int64.
const maxShift = 32

// Policy computes retry eligibility and delays for a bounded exponential
// backoff schedule: min(Base * 2^retryCount, Cap) plus random jitter in
// [0, Jitter).
type Policy struct {
	// Base is the delay applied on the first retry.
	Base time.Duration
	// Cap is the upper bound on the exponential delay (jitter excluded).
	Cap time.Duration
	// Jitter is the maximum random addition to each delay.
	Jitter time.Duration
	// MaxRetries is the retry ceiling; attempts at or beyond it are exhausted.
	MaxRetries int
}

// DefaultOutboxPolicy returns the publish retry policy for outbox entries.
func DefaultOutboxPolicy() Policy {
	return Policy{
		Base:       1 * time.Second,
		Cap:        60 * time.Second,
		Jitter:     500 * time.Millisecond,
		MaxRetries: 10,
	}
}

// BaseDelay returns the deterministic part of the delay for the given retry
// count: min(Base * 2^retryCount, Cap). Negative counts are treated as 0.
func (p Policy) BaseDelay(retryCount int) time.Duration {
	if p.Base <= 0 {
		return 0
	}

	if retryCount < 0 {
		retryCount = 0
	} else if retryCount > maxShift {
		retryCount = maxShift
	}

	delay := p.Base << uint(retryCount)
	if delay <= 0 || delay > p.Cap {
		return p.Cap
	}
	return delay
}

// Delay returns the full delay for the given retry count, including jitter.
func (p Policy) Delay(retryCount int) time.Duration {
	delay := p.BaseDelay(retryCount)
	if p.Jitter > 0 {
		delay += time.Duration(rand.Int64N(int64(p.Jitter))) // #nosec G404 -- jitter does not need crypto randomness
	}
	return delay
}

// Exhausted reports whether the retry ceiling has been reached.
func (p Policy) Exhausted(retryCount int) bool {
	return retryCount >= p.MaxRetries
}

// Eligible reports whether an entry created at createdAt with the given retry
// count may be attempted at time now. First attempts are always eligible;
// exhausted entries never are; everything else waits out the backoff delay.
func (p Policy) Eligible(retryCount int, createdAt, now time.Time) bool {
	if retryCount == 0 {
		return true
	}
	if p.Exhausted(retryCount) {
		return false
	}
	return !now.Before(createdAt.Add(p.BaseDelay(retryCount)))
}
