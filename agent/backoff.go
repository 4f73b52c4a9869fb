package agent

import (
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultReconnectBase = 5 * time.Second
	DefaultReconnectCap  = 60 * time.Second

	// maxBackoffDoublings bounds the exponent: after four failures the
	// delay stops growing even when the cap would allow more.
	maxBackoffDoublings = 4
)

// ReconnectPolicy yields min(base * 2^min(attempts, 4), limit) for
// consecutive failures and starts over after Reset.
type ReconnectPolicy struct {
	base     time.Duration
	limit    time.Duration
	attempts int
	backoff  retry.Backoff
}

func NewReconnectPolicy(base, limit time.Duration) *ReconnectPolicy {
	if base <= 0 {
		base = DefaultReconnectBase
	}
	if limit < base {
		limit = base
	}
	p := &ReconnectPolicy{base: base, limit: limit}
	p.Reset()
	return p
}

// Next returns the delay before the next attempt and counts the attempt.
func (p *ReconnectPolicy) Next() time.Duration {
	d, stop := p.backoff.Next()
	if stop {
		d = p.ceiling()
	}
	p.attempts++
	return d
}

// Reset is called after a successful connection.
func (p *ReconnectPolicy) Reset() {
	p.attempts = 0
	p.backoff = retry.WithCappedDuration(p.ceiling(), retry.NewExponential(p.base))
}

// Attempts returns the number of delays handed out since the last Reset.
func (p *ReconnectPolicy) Attempts() int { return p.attempts }

func (p *ReconnectPolicy) ceiling() time.Duration {
	return min(p.limit, p.base<<maxBackoffDoublings)
}
