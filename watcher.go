package cellz

import "context"

// Watcher is a source of encoded values for a Feed. Watch must send the
// current value first, then one value per change, and close the channel when
// ctx is done or the source is gone.
type Watcher interface {
	Watch(ctx context.Context) (<-chan []byte, error)
}
