// Package ratelimit spaces out requests to a remote service.
//
// FixedInterval wraps golang.org/x/time/rate with a burst of one, so
// consecutive Wait calls return at least the configured interval apart.
// Europe PMC is polled every 300ms; NCBI E-utilities every 500ms, or 100ms
// when an API key is supplied.
package ratelimit
