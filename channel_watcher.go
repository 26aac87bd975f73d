package cellz

import "context"

// ChannelWatcher adapts a byte channel to Watcher.
type ChannelWatcher struct {
	src    <-chan []byte
	direct bool
}

// NewChannelWatcher returns a Watcher that relays src until src closes or
// the watch context is done. While the feed is busy only the newest value
// is held, so a slow feed skips straight to the latest change.
func NewChannelWatcher(src <-chan []byte) *ChannelWatcher {
	return &ChannelWatcher{src: src}
}

// NewSyncChannelWatcher returns a Watcher that hands src to the Feed as is.
// Pair it with Feed.SyncMode and Feed.Process in tests.
func NewSyncChannelWatcher(src <-chan []byte) *ChannelWatcher {
	return &ChannelWatcher{src: src, direct: true}
}

// Watch implements Watcher.
func (w *ChannelWatcher) Watch(ctx context.Context) (<-chan []byte, error) {
	if w.direct {
		return w.src, nil
	}
	out := make(chan []byte)
	go w.relay(ctx, out)
	return out, nil
}

// relay forwards src to out, replacing a held value that out has not taken
// yet. A held value is still delivered after src closes.
func (w *ChannelWatcher) relay(ctx context.Context, out chan<- []byte) {
	defer close(out)

	var (
		src    = w.src
		latest []byte
		held   bool
	)
	for src != nil || held {
		var send chan<- []byte
		if held {
			send = out
		}

		select {
		case <-ctx.Done():
			return
		case v, ok := <-src:
			if !ok {
				src = nil
				continue
			}
			latest, held = v, true
		case send <- latest:
			latest, held = nil, false
		}
	}
}
