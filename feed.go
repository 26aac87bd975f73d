package cellz

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// DefaultDebounce is the default window in which a Feed coalesces changes.
const DefaultDebounce = 100 * time.Millisecond

// Validator is implemented by values that check themselves. Values that do
// not implement it are checked against their `validate` struct tags.
type Validator interface {
	Validate() error
}

var structValidator = validator.New()

// Feed keeps a container in sync with a Watcher. Each change is decoded,
// validated and run through the pipeline; the result is written to the
// container. A failed change records its error on the container and keeps
// the previous value.
type Feed[T any] struct {
	watcher        Watcher
	target         *Container[T]
	pipeline       pipz.Chainable[*Request[T]]
	debounce       time.Duration
	startupTimeout time.Duration
	syncMode       bool
	clock          clockz.Clock
	codec          Codec
	onStop         func(Phase)

	mu      sync.Mutex
	started bool

	changes <-chan []byte
}

// NewFeed creates a Feed writing to target.
//
// Example:
//
//	settings := cellz.New(cellz.Value(Settings{}))
//	feed := cellz.NewFeed(cellz.NewFileWatcher("settings.yaml"), settings,
//	    cellz.WithRetry[Settings](3),
//	).Codec(cellz.YAMLCodec{})
//	if err := feed.Start(ctx); err != nil {
//	    log.Printf("initial settings rejected: %v", err)
//	}
func NewFeed[T any](watcher Watcher, target *Container[T], opts ...FeedOption[T]) *Feed[T] {
	terminal := pipz.Effect(commitID, func(_ context.Context, req *Request[T]) error {
		target.Set(Value(req.Current))
		return nil
	})
	return &Feed[T]{
		watcher:  watcher,
		target:   target,
		pipeline: buildPipeline(terminal, opts),
		debounce: DefaultDebounce,
		clock:    clockz.RealClock,
		codec:    JSONCodec{},
	}
}

// Debounce sets the window in which changes are coalesced.
// Default: 100ms. Must be called before Start().
func (f *Feed[T]) Debounce(d time.Duration) *Feed[T] {
	f.debounce = d
	return f
}

// SyncMode processes changes only when Process is called.
// Must be called before Start().
func (f *Feed[T]) SyncMode() *Feed[T] {
	f.syncMode = true
	return f
}

// Clock sets the clock used for debouncing and the startup timeout.
// Must be called before Start().
func (f *Feed[T]) Clock(clock clockz.Clock) *Feed[T] {
	f.clock = clock
	return f
}

// Codec sets the codec for decoding changes.
// Default: JSONCodec. Must be called before Start().
func (f *Feed[T]) Codec(codec Codec) *Feed[T] {
	f.codec = codec
	return f
}

// StartupTimeout bounds how long Start waits for the first value.
// Default: no timeout. Must be called before Start().
func (f *Feed[T]) StartupTimeout(d time.Duration) *Feed[T] {
	f.startupTimeout = d
	return f
}

// OnStop sets a callback run with the container phase when the feed stops
// watching. Must be called before Start().
func (f *Feed[T]) OnStop(fn func(Phase)) *Feed[T] {
	f.onStop = fn
	return f
}

// Target returns the container the feed writes to.
func (f *Feed[T]) Target() *Container[T] {
	return f.target
}

// Start begins watching. It blocks until the first value is processed and
// returns its error, if any; watching continues in the background either
// way until ctx is done. In sync mode only the first value is processed and
// later ones wait for Process.
//
// Start can only be called once.
func (f *Feed[T]) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return errors.New("feed already started")
	}
	f.started = true
	f.mu.Unlock()

	capitan.Emit(ctx, FeedStarted,
		KeyContainer.Field(f.target.Name()),
		KeyDebounce.Field(f.debounce),
	)

	changes, err := f.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	startupCtx := ctx
	if f.startupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = f.clock.WithTimeout(ctx, f.startupTimeout)
		defer cancel()
	}

	var initialErr error
	select {
	case <-startupCtx.Done():
		if f.startupTimeout > 0 && errors.Is(startupCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("startup timeout: watcher did not emit initial value within %v", f.startupTimeout)
		}
		return startupCtx.Err()
	case raw, ok := <-changes:
		if !ok {
			return errors.New("watcher closed before emitting initial value")
		}
		f.received(ctx)
		initialErr = f.process(ctx, raw)
	}

	if f.syncMode {
		f.changes = changes
		return initialErr
	}

	go f.watch(ctx, changes)
	return initialErr
}

// Process handles the next pending change. It is only available in sync
// mode and reports whether a change was processed.
func (f *Feed[T]) Process(ctx context.Context) bool {
	if !f.syncMode {
		return false
	}

	select {
	case raw, ok := <-f.changes:
		if !ok {
			return false
		}
		f.received(ctx)
		_ = f.process(ctx, raw) //nolint:errcheck // recorded on the container
		return true
	default:
		return false
	}
}

func (f *Feed[T]) received(ctx context.Context) {
	capitan.Emit(ctx, FeedChangeReceived,
		KeyContainer.Field(f.target.Name()),
	)
}

// process decodes, validates and commits one change.
func (f *Feed[T]) process(ctx context.Context, raw []byte) error {
	var next T
	if err := f.codec.Unmarshal(raw, &next); err != nil {
		return f.failed(ctx, FeedDecodeFailed, fmt.Errorf("decode failed: %w", err))
	}

	if err := check(next); err != nil {
		return f.failed(ctx, FeedValidationFailed, fmt.Errorf("validation failed: %w", err))
	}

	req := &Request[T]{Previous: f.target.Peek(), Current: next, Raw: raw}
	if _, err := f.pipeline.Process(ctx, req); err != nil {
		return f.failed(ctx, FeedApplyFailed, fmt.Errorf("pipeline failed: %w", err))
	}
	return nil
}

func (f *Feed[T]) failed(ctx context.Context, signal capitan.Signal, err error) error {
	capitan.Emit(ctx, signal,
		KeyContainer.Field(f.target.Name()),
		KeyError.Field(err.Error()),
	)
	f.target.Set(Fail[T](err))
	return err
}

// check validates v with its Validate method, or with struct tags when v is
// a struct or a pointer to one.
func check(v any) error {
	if val, ok := v.(Validator); ok {
		return val.Validate()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return structValidator.Struct(rv.Interface())
}

// watch processes changes with debouncing until ctx is done or the watcher
// closes its channel.
func (f *Feed[T]) watch(ctx context.Context, changes <-chan []byte) {
	defer func() {
		phase := f.target.Phase()
		capitan.Emit(ctx, FeedStopped,
			KeyContainer.Field(f.target.Name()),
			KeyState.Field(phase.String()),
		)
		if f.onStop != nil {
			f.onStop(phase)
		}
	}()

	var (
		timer      clockz.Timer
		pending    []byte
		hasPending bool
	)

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case raw, ok := <-changes:
			if !ok {
				if hasPending {
					_ = f.process(ctx, pending) //nolint:errcheck // recorded on the container
				}
				return
			}

			f.received(ctx)
			pending = raw
			hasPending = true

			if timer == nil {
				timer = f.clock.NewTimer(f.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(f.debounce)
			}

		case <-timerC:
			if hasPending {
				_ = f.process(ctx, pending) //nolint:errcheck // recorded on the container
				hasPending = false
			}
		}
	}
}
