package cellz

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// Pipeline identities.
var (
	commitID     = pipz.NewIdentity("cellz:commit", "Writes the feed value to its container")
	retryID      = pipz.NewIdentity("cellz:retry", "Retries the feed pipeline")
	backoffID    = pipz.NewIdentity("cellz:backoff", "Retries the feed pipeline with exponential backoff")
	timeoutID    = pipz.NewIdentity("cellz:timeout", "Bounds the feed pipeline duration")
	fallbackID   = pipz.NewIdentity("cellz:fallback", "Tries fallback processors after a failure")
	middlewareID = pipz.NewIdentity("cellz:middleware", "Runs middleware before the commit")
	breakerID    = pipz.NewIdentity("cellz:circuit-breaker", "Stops calling the feed pipeline after repeated failures")
	handlerID    = pipz.NewIdentity("cellz:error-handler", "Observes feed pipeline failures")
	limiterID    = pipz.NewIdentity("cellz:rate-limiter", "Limits the rate of feed changes")
)

// FeedOption wraps the pipeline of a Feed.
type FeedOption[T any] func(pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]]

func buildPipeline[T any](terminal pipz.Chainable[*Request[T]], opts []FeedOption[T]) pipz.Chainable[*Request[T]] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// WithRetry retries a failed pipeline immediately, up to maxAttempts times.
func WithRetry[T any](maxAttempts int) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewRetry(retryID, p, maxAttempts)
	}
}

// WithBackoff retries a failed pipeline with delays of baseDelay,
// 2*baseDelay, 4*baseDelay and so on.
func WithBackoff[T any](maxAttempts int, baseDelay time.Duration) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewBackoff(backoffID, p, maxAttempts, baseDelay)
	}
}

// WithTimeout fails the pipeline if it runs longer than d.
func WithTimeout[T any](d time.Duration) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewTimeout(timeoutID, p, d)
	}
}

// WithFallback tries each fallback in order when the pipeline fails.
func WithFallback[T any](fallbacks ...pipz.Chainable[*Request[T]]) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		all := append([]pipz.Chainable[*Request[T]]{p}, fallbacks...)
		return pipz.NewFallback(fallbackID, all...)
	}
}

// WithCircuitBreaker stops calling the pipeline after failures consecutive
// failures, and tries again after recovery.
func WithCircuitBreaker[T any](failures int, recovery time.Duration) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewCircuitBreaker(breakerID, p, failures, recovery)
	}
}

// WithErrorHandler passes pipeline failures to handler. The failure still
// reaches the container.
func WithErrorHandler[T any](handler pipz.Chainable[*pipz.Error[*Request[T]]]) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewHandle(handlerID, p, handler)
	}
}

// WithMiddleware runs processors in order before the value is committed.
//
// Example:
//
//	cellz.NewFeed(watcher, settings,
//	    cellz.WithMiddleware(
//	        cellz.UseEffect[Settings](auditID, audit),
//	        cellz.UseApply[Settings](defaultsID, applyDefaults),
//	    ),
//	    cellz.WithRetry[Settings](3),
//	)
func WithMiddleware[T any](processors ...pipz.Chainable[*Request[T]]) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		all := make([]pipz.Chainable[*Request[T]], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence(middlewareID, all...)
	}
}

// UseTransform adapts an infallible request transformation.
func UseTransform[T any](id pipz.Identity, fn func(context.Context, *Request[T]) *Request[T]) pipz.Chainable[*Request[T]] {
	return pipz.Transform(id, fn)
}

// UseApply adapts a fallible request transformation.
func UseApply[T any](id pipz.Identity, fn func(context.Context, *Request[T]) (*Request[T], error)) pipz.Chainable[*Request[T]] {
	return pipz.Apply(id, fn)
}

// UseEffect adapts a side effect. A returned error fails the pipeline.
func UseEffect[T any](id pipz.Identity, fn func(context.Context, *Request[T]) error) pipz.Chainable[*Request[T]] {
	return pipz.Effect(id, fn)
}

// UseMutate applies transformer only when condition holds.
func UseMutate[T any](id pipz.Identity, transformer func(context.Context, *Request[T]) *Request[T], condition func(context.Context, *Request[T]) bool) pipz.Chainable[*Request[T]] {
	return pipz.Mutate(id, transformer, condition)
}

// UseEnrich applies fn, keeping the original request if fn fails.
func UseEnrich[T any](id pipz.Identity, fn func(context.Context, *Request[T]) (*Request[T], error)) pipz.Chainable[*Request[T]] {
	return pipz.Enrich(id, fn)
}

// UseRetry retries processor up to maxAttempts times.
func UseRetry[T any](maxAttempts int, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewRetry(retryID, processor, maxAttempts)
}

// UseBackoff retries processor with exponential delays.
func UseBackoff[T any](maxAttempts int, baseDelay time.Duration, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewBackoff(backoffID, processor, maxAttempts, baseDelay)
}

// UseTimeout bounds processor to d.
func UseTimeout[T any](d time.Duration, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewTimeout(timeoutID, processor, d)
}

// UseFallback tries primary, then each fallback in order.
func UseFallback[T any](primary pipz.Chainable[*Request[T]], fallbacks ...pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	all := append([]pipz.Chainable[*Request[T]]{primary}, fallbacks...)
	return pipz.NewFallback(fallbackID, all...)
}

// UseFilter runs processor only when condition holds.
func UseFilter[T any](id pipz.Identity, condition func(context.Context, *Request[T]) bool, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewFilter(id, condition, processor)
}

// UseRateLimit runs processor at most rate times per second, allowing
// bursts of burst.
func UseRateLimit[T any](rate float64, burst int, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewRateLimiter(limiterID, rate, burst, processor)
}
