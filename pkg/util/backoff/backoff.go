// Package backoff provides retry pacing for operations that need to be re-established after a failure.
package backoff

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Instance struct {
	MaxRetries         int
	BaseRetryDuration  time.Duration
	BackoffPolicy      Policy
	MaxBackoffDuration time.Duration
	Attempt            int
}

// Backoff waits for the duration the policy prescribes for the current attempt and advances the attempt counter.
//
// It returns false when the retries are exhausted or the context was cancelled before the wait completed.
// A MaxRetries of 0 means unlimited retries.
func (i *Instance) Backoff(ctx context.Context) bool {
	if i.MaxRetries > 0 && i.Attempt >= i.MaxRetries {
		return false
	}
	wait := i.next()
	i.Attempt++
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Reset restarts the attempt counter, typically after a successful attempt.
func (i *Instance) Reset() {
	i.Attempt = 0
}

func (i *Instance) C(ctx context.Context) <-chan int {
	c := make(chan int)
	go func() {
		defer close(c)
		for attempt := 0; i.MaxRetries <= 0 || attempt < i.MaxRetries; attempt++ {
			select {
			case <-ctx.Done():
				return
			case c <- attempt:
			}
			wait := i.policy()(attempt, i.BaseRetryDuration)
			if i.MaxBackoffDuration > 0 {
				wait = min(wait, i.MaxBackoffDuration)
			}
			logrus.Debugf("backoff: sleeping for %v", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}()
	return c
}

func (i *Instance) next() time.Duration {
	wait := i.policy()(i.Attempt, i.BaseRetryDuration)
	if i.MaxBackoffDuration > 0 {
		wait = min(wait, i.MaxBackoffDuration)
	}
	return wait
}

func (i *Instance) policy() Policy {
	if i.BackoffPolicy == nil {
		return ExponentialBackoff
	}
	return i.BackoffPolicy
}

func New(base, max time.Duration, maxRetries int) *Instance {
	return &Instance{
		MaxRetries:         maxRetries,
		BaseRetryDuration:  base,
		BackoffPolicy:      ExponentialBackoff,
		MaxBackoffDuration: max,
	}
}

type Policy func(i int, unit time.Duration) time.Duration

func ExponentialBackoff(i int, unit time.Duration) time.Duration {
	if i > 30 {
		i = 30
	}
	return time.Duration(1<<uint(i)) * unit
}

func ConstantBackoff(_ int, unit time.Duration) time.Duration {
	return unit
}

func min(l, r time.Duration) time.Duration {
	if l < r {
		return l
	}
	return r
}
