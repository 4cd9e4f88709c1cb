package retryx

import (
	"time"

	"github.com/cenkalti/backoff"
)

const (
	DefaultInterval       = 500 * time.Millisecond
	DefaultMaxInterval    = 2 * time.Second
	DefaultMaxElapsedTime = 5 * time.Second
	DefaultMaxRetries     = 3
)

// ConstantRetry calls fn until it succeeds, waiting the same interval
// between attempts. It gives up after the retry count is reached, when fn
// returns a Permanent error, or once the context option is done.
func ConstantRetry(fn func() error, opts ...RetryOption) error {
	o := newRetryOptions(opts)
	return o.run(fn, backoff.NewConstantBackOff(o.interval()))
}

// ExponentialRetry calls fn until it succeeds, doubling the wait between
// attempts up to the max interval. Besides the stop conditions of
// ConstantRetry, it also gives up once the max elapsed time is spent.
func ExponentialRetry(fn func() error, opts ...RetryOption) error {
	o := newRetryOptions(opts)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.interval()
	bo.MaxInterval = orDefault(o.maxInterval, DefaultMaxInterval)
	bo.MaxElapsedTime = orDefault(o.maxElapsedTime, DefaultMaxElapsedTime)
	return o.run(fn, bo)
}

// Permanent marks err as not worth retrying. The retry returns err unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func (o *retryOptions) interval() time.Duration {
	return orDefault(o.initialInterval, DefaultInterval)
}

func (o *retryOptions) run(fn func() error, bo backoff.BackOff) error {
	bo.Reset()
	if o.ctx != nil {
		bo = backoff.WithContext(bo, o.ctx)
	}

	attempts := 0
	maxAttempts := o.retryCount
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRetries
	}

	return backoff.RetryNotify(func() error {
		attempts++
		err := fn()
		if err != nil && attempts >= maxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}, bo, o.notify)
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
