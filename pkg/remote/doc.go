// Package remote is the HTTP transport shared by the search providers.
//
// Every attempt first waits on the configured rate limiter, then issues a GET.
// A 200 response yields the body; 429 becomes a throttled error and any other
// status or transport failure a transient one, both retried by pkg/retry.
// Decoding failures are returned as parsing errors and are not retried.
package remote
