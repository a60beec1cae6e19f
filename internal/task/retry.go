package task

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-retry"
)

// BackoffKind selects how the delay between attempts grows.
type BackoffKind string

// Supported backoff kinds.
const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// RetryOptions configures ExecuteWithRetry.
type RetryOptions struct {
	// Retries is the number of attempts after the first one
	Retries int `validate:"gte=0"`

	// Backoff is the delay policy between attempts
	Backoff BackoffKind `validate:"required,oneof=fixed exponential"`

	// Delay is the wait before the first retry. Exponential backoff doubles
	// it on every further retry.
	Delay time.Duration `validate:"gte=0"`
}

var retryValidator = validator.New()

// Validate checks the options.
func (o RetryOptions) Validate() error {
	if err := retryValidator.Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRetryOptions, err)
	}
	return nil
}

// ExecuteWithRetry calls fn up to Retries+1 times, sleeping between failed
// attempts. It returns the first success, or the last attempt's error as fn
// returned it. A done ctx stops further attempts.
func ExecuteWithRetry[T any](ctx context.Context, opts RetryOptions, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := opts.Validate(); err != nil {
		var zero T
		return zero, err
	}

	return retry.DoValue(ctx, opts.backoff(), func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, retry.RetryableError(err)
		}
		return v, nil
	})
}

func (o RetryOptions) backoff() retry.Backoff {
	var b retry.Backoff
	switch {
	case o.Delay == 0:
		// go-retry rejects a zero base; retry immediately instead.
		b = retry.BackoffFunc(func() (time.Duration, bool) { return 0, false })
	case o.Backoff == BackoffExponential:
		b = retry.NewExponential(o.Delay)
	default:
		b = retry.NewConstant(o.Delay)
	}
	return retry.WithMaxRetries(uint64(o.Retries), b)
}
