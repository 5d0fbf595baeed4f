// Package retry runs an operation a bounded number of times, waiting between
// attempts with a backoff chosen from the failure's type.
//
//	cfg := retry.NewConfig(5, 10*time.Second, 2*time.Second, log)
//	body, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) ([]byte, error) {
//		return client.get(ctx, url)
//	})
//
// Throttled failures (HTTP 429) wait 10s, 20s, 30s...; every other retryable
// failure waits a flat 2s. Parsing and content-size failures are returned
// immediately. After the last attempt an *ExhaustedError wrapping the final
// failure is returned.
package retry
