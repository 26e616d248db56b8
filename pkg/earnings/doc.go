// Package earnings batches coins earned on the coin button and reports them
// to the backend. Reporting failures are surfaced as retryable errors while
// the local count stays untouched.
package earnings
