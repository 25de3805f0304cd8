package backoff

import (
	"context"
	"time"

	"github.com/folioshop/storefront/libs/backoff/retrypolicy"
)

type (
	// RetryFunc defines a retry function
	RetryFunc func(ctx context.Context, operation Operation, retryPolicy retrypolicy.Retry, isRetriable IsRetriable) (interface{}, error)

	// Operation the operation to be executed with retry
	Operation func() (interface{}, error)

	// IsRetriable a function to determine if an error caused by the executed operation is retriable
	IsRetriable func(error) bool
)

// Retry executes the given Operation using the provided retrypolicy.Retry policy and IsRetriable conditions.
// Waiting between attempts stops as soon as ctx is done.
func Retry(ctx context.Context, operation Operation, retryPolicy retrypolicy.Retry, isRetriable IsRetriable) (interface{}, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		response, err := operation()
		if err == nil {
			return response, nil
		}

		if !isRetriable(err) {
			return nil, err
		}

		next := retryPolicy.CalculateNextDelay()
		if next == retrypolicy.Done {
			return nil, err
		}

		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
