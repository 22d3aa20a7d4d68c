package session

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultRetryBudget is the number of consecutive empty subscribe answers tolerated
// before the subscription is declared failed.
const DefaultRetryBudget = 5

// RetryPolicy bounds the subscribe retry loop.
type RetryPolicy struct {
	// Budget is the number of subscribe attempts allowed. Values below 1 mean
	// DefaultRetryBudget.
	Budget int
	// NewBackOff builds the delay schedule between attempts, one per handshake.
	// Nil means resend immediately.
	NewBackOff func() backoff.BackOff
}

// DefaultRetryPolicy retries with an exponential delay starting at 250ms.
func DefaultRetryPolicy() RetryPolicy {
	return ExponentialRetryPolicy(DefaultRetryBudget, 250*time.Millisecond, 5*time.Second)
}

// ExponentialRetryPolicy retries budget times with a jittered exponential delay.
func ExponentialRetryPolicy(budget int, initial, max time.Duration) RetryPolicy {
	return RetryPolicy{
		Budget: budget,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = max
			return b
		},
	}
}

func (p RetryPolicy) budget() int {
	if p.Budget < 1 {
		return DefaultRetryBudget
	}
	return p.Budget
}

// retrier tracks one handshake's subscribe attempts.
type retrier struct {
	budget   int
	attempts int
	backoff  backoff.BackOff
}

func (p RetryPolicy) start() *retrier {
	r := &retrier{budget: p.budget()}
	if p.NewBackOff != nil {
		r.backoff = p.NewBackOff()
		r.backoff.Reset()
	}
	return r
}

// sent records a subscribe request going out.
func (r *retrier) sent() {
	r.attempts++
}

// next returns the delay before the next attempt, or false once the budget is spent.
func (r *retrier) next() (time.Duration, bool) {
	if r.attempts >= r.budget {
		return 0, false
	}
	if r.backoff == nil {
		return 0, true
	}
	d := r.backoff.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}
