// Package retry wraps remote calls with the failure policy used for every Spotify request.
//
// Failures are classified into three kinds:
//
//   - Rate limited: the error reports a server hint through RetryAfter. The retrier sleeps
//     exactly that long (or [Policy.DefaultRetryAfter] when no hint was sent) and tries again.
//     These waits do not consume the attempt budget.
//   - Transient: timeouts and other transport failures. The retrier sleeps
//     BaseDelay * 2^n, where n is the number of transient failures so far, and tries again.
//     After [Policy.MaxAttempts] transient failures the call fails with [ErrMaxRetries].
//   - Permanent: everything else, including context cancellation. Returned immediately.
//
// [Do] applies the full policy. [DoRateLimited] only waits out rate limits and is meant for
// calls that must not be repeated after an ambiguous failure, such as creating a playlist.
package retry
