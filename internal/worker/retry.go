package worker

import (
	"math"
	"math/rand/v2"
	"time"

	"marketplace/internal/config"
)

// RetryPolicy spaces out redelivery of mail the relay refused. Delays grow
// by BackoffFactor from InitialDelay up to MaxDelay; Jitter shaves a random
// fraction off each delay so tasks that failed together during a relay
// outage do not all come back at the same moment.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64

	random func() float64
}

// NewRetryPolicy reads the notifications section and fills the gaps with
// the worker defaults.
func NewRetryPolicy(cfg config.NotificationConfig) RetryPolicy {
	p := RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      cfg.MaxDelay,
		BackoffFactor: cfg.BackoffFactor,
		Jitter:        cfg.RetryJitter,
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 5
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 2 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Minute
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 2
	}
	p.Jitter = math.Min(math.Max(p.Jitter, 0), 1)
	return p
}

// Exhausted reports whether a task that just failed its attempt-th delivery
// (1-based) has no retries left.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= r.MaxRetries
}

// NextDelay returns the wait before the delivery that follows the given
// failed attempt (1-based). The result lies in [d*(1-Jitter), d] where d is
// the capped exponential delay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	if r.MaxDelay > 0 && (d > r.MaxDelay || d <= 0) {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}

	if r.Jitter > 0 {
		random := r.random
		if random == nil {
			random = rand.Float64
		}
		d -= time.Duration(float64(d) * r.Jitter * random())
		if d < time.Millisecond {
			d = time.Millisecond
		}
	}
	return d
}
