package apiclient

import "context"

// Attempt performs one try of an operation. It reports whether the caller
// should try again.
type Attempt[T any] func(ctx context.Context, attempt int) (result T, again bool, err error)

// WithRetry runs fn until it stops asking for another try, returns an error,
// or maxRetries extra attempts have been made. The result of the last attempt
// is returned as is.
func WithRetry[T any](ctx context.Context, fn Attempt[T], maxRetries int) (T, error) {
	for attempt := 0; ; attempt++ {
		result, again, err := fn(ctx, attempt)
		if err != nil || !again || attempt >= maxRetries {
			return result, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
	}
}
