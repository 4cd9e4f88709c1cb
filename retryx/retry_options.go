package retryx

import (
	"context"
	"time"
)

type retryOptions struct {
	retryCount      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	ctx             context.Context
	notify          func(err error, next time.Duration)
}

type RetryOption func(*retryOptions)

func newRetryOptions(opts []RetryOption) *retryOptions {
	o := &retryOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithRetryCount caps the number of attempts, the first one included.
func WithRetryCount(count int) RetryOption {
	return func(ro *retryOptions) {
		ro.retryCount = count
	}
}

// WithInterval sets the constant interval, or the initial one for exponential retries.
func WithInterval(interval time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.initialInterval = interval
	}
}

func WithMaxInterval(interval time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.maxInterval = interval
	}
}

func WithMaxElapsedTime(d time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.maxElapsedTime = d
	}
}

// WithContext stops retrying once ctx is done.
func WithContext(ctx context.Context) RetryOption {
	return func(ro *retryOptions) {
		ro.ctx = ctx
	}
}

// WithNotify is called after every failed attempt that will be retried.
func WithNotify(fn func(err error, next time.Duration)) RetryOption {
	return func(ro *retryOptions) {
		ro.notify = fn
	}
}
