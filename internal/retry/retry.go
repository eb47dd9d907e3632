package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likesync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 500 * time.Millisecond
	defaultRetryAfter  = time.Second
)

// ErrMaxRetries is returned once the transient failure budget is exhausted.
var ErrMaxRetries = errors.New("maximum retries reached")

// Kind is the retry classification of an error.
type Kind int

const (
	Permanent Kind = iota
	RateLimited
	Transient
)

func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case Transient:
		return "transient"
	default:
		return "permanent"
	}
}

// rateLimitError is implemented by errors that carry a server back-off hint.
//
// ok is false when the error is not a rate-limit rejection. A negative d means the server sent no
// hint; zero asks for an immediate retry.
type rateLimitError interface {
	RetryAfter() (d time.Duration, ok bool)
}

// Policy configures a [Retrier]. Non-positive values fall back to the defaults.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	DefaultRetryAfter time.Duration
	// MaxRateLimitWaits bounds consecutive rate-limit waits for one call. Zero means unbounded.
	MaxRateLimitWaits int
}

// DefaultPolicy returns 5 attempts, 500ms base delay and a 1s fallback rate-limit wait.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       defaultMaxAttempts,
		BaseDelay:         defaultBaseDelay,
		DefaultRetryAfter: defaultRetryAfter,
	}
}

// PolicyFromConfig builds a [Policy] from the [retry] config section.
func PolicyFromConfig(cfg shared.RetryConfig) Policy {
	return Policy{
		MaxAttempts:       cfg.MaxAttempts,
		BaseDelay:         time.Duration(cfg.BackoffMs) * time.Millisecond,
		DefaultRetryAfter: time.Duration(cfg.DefaultRetryAfterMs) * time.Millisecond,
		MaxRateLimitWaits: cfg.MaxRateLimitWaits,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.DefaultRetryAfter <= 0 {
		p.DefaultRetryAfter = defaultRetryAfter
	}
	if p.MaxRateLimitWaits < 0 {
		p.MaxRateLimitWaits = 0
	}
	return p
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Stats counts the waits performed by a [Retrier] across all calls.
type Stats struct {
	RateLimitWaits int
	Retries        int
	Waited         time.Duration
}

// Wait describes a pause before the next attempt of one call.
type Wait struct {
	Kind    Kind
	Delay   time.Duration
	Attempt int // rate-limit waits or transient failures so far
	Err     error
}

// Retrier executes operations under a [Policy].
type Retrier struct {
	policy Policy
	logger *log.Logger
	sleep  SleepFunc
	notify func(Wait)

	rateLimitWaits atomic.Int64
	retries        atomic.Int64
	waited         atomic.Int64
}

// Option configures a [Retrier].
type Option func(*Retrier)

// WithSleep replaces the wait function, mainly so tests can record waits instead of blocking.
func WithSleep(fn SleepFunc) Option {
	return func(r *Retrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithNotify calls fn before every wait. fn runs on the calling goroutine and must not block.
func WithNotify(fn func(Wait)) Option {
	return func(r *Retrier) {
		r.notify = fn
	}
}

// New creates a [Retrier]. A nil logger discards wait messages.
func New(policy Policy, logger *log.Logger, opts ...Option) *Retrier {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	r := &Retrier{
		policy: policy.normalize(),
		logger: logger,
		sleep:  sleepWithContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective policy after defaults were applied.
func (r *Retrier) Policy() Policy { return r.policy }

func (r *Retrier) Stats() Stats {
	return Stats{
		RateLimitWaits: int(r.rateLimitWaits.Load()),
		Retries:        int(r.retries.Load()),
		Waited:         time.Duration(r.waited.Load()),
	}
}

// Classify reports how err should be handled and, for rate limits, the server hint.
// A negative hint means the server did not send one.
//
// Token endpoint rejections arrive wrapped in *url.Error like any transport failure, but retrying
// a revoked grant cannot succeed, so they are permanent.
func Classify(err error) (Kind, time.Duration) {
	if err == nil {
		return Permanent, 0
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Permanent, 0
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) || errors.Is(err, shared.ErrInvalidInput) || errors.Is(err, shared.ErrTokenExpired) {
		return Permanent, 0
	}

	var rl rateLimitError
	if errors.As(err, &rl) {
		if d, ok := rl.RetryAfter(); ok {
			return RateLimited, d
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient, 0
	}

	var urlErr *url.Error
	var opErr *net.OpError
	switch {
	case errors.As(err, &urlErr), errors.As(err, &opErr):
		return Transient, 0
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, shared.ErrTimeout):
		return Transient, 0
	}

	return Permanent, 0
}

// Do runs op, waiting out rate limits and retrying transient failures with exponential backoff.
func Do[T any](ctx context.Context, r *Retrier, op func(context.Context) (T, error)) (T, error) {
	return run(ctx, r, op, true)
}

// DoRateLimited runs op, waiting out rate limits only. Any other failure is returned as is.
func DoRateLimited[T any](ctx context.Context, r *Retrier, op func(context.Context) (T, error)) (T, error) {
	return run(ctx, r, op, false)
}

func run[T any](ctx context.Context, r *Retrier, op func(context.Context) (T, error), transient bool) (T, error) {
	var zero T
	failures := 0
	waits := 0

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		kind, hint := Classify(err)
		if ctx.Err() != nil {
			kind = Permanent
		}

		switch kind {
		case RateLimited:
			waits++
			if limit := r.policy.MaxRateLimitWaits; limit > 0 && waits > limit {
				return zero, fmt.Errorf("%w: still rate limited after %d waits: %w", ErrMaxRetries, limit, err)
			}

			wait := hint
			if wait < 0 {
				wait = r.policy.DefaultRetryAfter
			}

			r.logger.Warnf("rate limit hit, sleeping for %s", wait)
			r.rateLimitWaits.Add(1)
			if err := r.wait(ctx, Wait{Kind: RateLimited, Delay: wait, Attempt: waits, Err: err}); err != nil {
				return zero, err
			}

		case Transient:
			if !transient {
				return zero, err
			}

			failures++
			if failures >= r.policy.MaxAttempts {
				r.logger.Error("giving up", "attempts", failures, "err", err)
				return zero, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, failures, err)
			}

			wait := r.policy.BaseDelay * time.Duration(1<<(failures-1))
			r.logger.Warnf("request failed (%v), retrying in %s", err, wait)
			r.retries.Add(1)
			if err := r.wait(ctx, Wait{Kind: Transient, Delay: wait, Attempt: failures, Err: err}); err != nil {
				return zero, err
			}

		default:
			return zero, err
		}
	}
}

func (r *Retrier) wait(ctx context.Context, w Wait) error {
	if r.notify != nil {
		r.notify(w)
	}
	r.waited.Add(int64(w.Delay))
	return r.sleep(ctx, w.Delay)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: retry wait canceled: %w", shared.ErrTimeout, ctx.Err())
	case <-timer.C:
		return nil
	}
}
