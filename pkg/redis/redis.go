// Package redis connects cellz containers to Redis. Watcher feeds a
// container from a key using keyspace notifications, and Save/Load persist
// hydration snapshots.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zoobzio/cellz"
)

// Watcher watches a Redis key for changes using keyspace notifications.
// Requires Redis to have keyspace notifications enabled:
//
//	CONFIG SET notify-keyspace-events KEA
type Watcher struct {
	client *redis.Client
	key    string
	events map[string]bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithEvents replaces the keyspace events that trigger a re-read. The
// default covers the string write commands.
func WithEvents(events ...string) Option {
	return func(w *Watcher) {
		w.events = make(map[string]bool, len(events))
		for _, e := range events {
			w.events[e] = true
		}
	}
}

// New creates a Watcher for key. It satisfies cellz.Watcher.
func New(client *redis.Client, key string, opts ...Option) *Watcher {
	w := &Watcher{
		client: client,
		key:    key,
	}
	WithEvents("set", "setex", "psetex", "setnx", "setrange", "append")(w)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch subscribes to notifications for the key and returns a channel that
// carries the current value first, then the value after every write. A
// missing key produces no initial value.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	channel := fmt.Sprintf("__keyspace@%d__:%s", w.client.Options().DB, w.key)
	pubsub := w.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to keyspace notifications: %w", err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer pubsub.Close()

		if !w.emit(ctx, out) {
			return
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if !w.events[msg.Payload] {
					continue
				}
				if !w.emit(ctx, out) {
					return
				}
			}
		}
	}()

	return out, nil
}

// emit reads the key and sends it. It returns false when the watcher
// should stop.
func (w *Watcher) emit(ctx context.Context, out chan<- []byte) bool {
	val, err := w.client.Get(ctx, w.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return true
	}
	if err != nil {
		return ctx.Err() == nil
	}
	select {
	case out <- val:
		return true
	case <-ctx.Done():
		return false
	}
}

// Save encodes the current snapshot of h with codec and stores it at key.
// A zero ttl keeps the key without expiry.
func Save(ctx context.Context, client *redis.Client, key string, h *cellz.Hydration, codec cellz.Codec, ttl time.Duration) error {
	data, err := h.Encode(codec)
	if err != nil {
		return err
	}
	if err := client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %q: %w", key, err)
	}
	return nil
}

// Load reads a snapshot stored by Save. A missing key yields an empty
// snapshot so the caller can always pass the result to cellz.Hydrate.
func Load(ctx context.Context, client *redis.Client, key string, codec cellz.Codec) (cellz.Snapshot, error) {
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", key, err)
	}
	return cellz.DecodeSnapshot(codec, data)
}

// Persist saves the snapshot whenever an attached container changes and
// returns a function that stops it. Save errors are passed to onError when
// it is non-nil.
func Persist(ctx context.Context, client *redis.Client, key string, h *cellz.Hydration, codec cellz.Codec, onError func(error)) (stop func()) {
	return h.OnDehydrate(func() {
		if err := Save(ctx, client, key, h, codec, 0); err != nil && onError != nil {
			onError(err)
		}
	})
}
