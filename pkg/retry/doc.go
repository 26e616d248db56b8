// Package retry retries backend calls with exponential backoff.
//
// Only typed errors from coinclicker/pkg/errors whose type is retryable
// (network, rate limit, server error) are retried by default; cancellation
// of the context stops the loop immediately.
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//	    return client.SignOut(ctx)
//	}, cfg)
package retry
