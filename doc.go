/*
Package cellz provides reactive state containers for Go services.

A Container holds one value of type T together with its loading flag and
last error. Updates are applied through a single Set entry point that
accepts plain values, reducers, async work and failures, and every change
is delivered to subscribers as an immutable State snapshot.

# Basic Usage

Create a container and subscribe to it:

	count := cellz.New(cellz.Value(0), cellz.WithName[int]("count"))
	defer count.Dispose()

	unsubscribe := count.Subscribe(func(s cellz.State[int]) {
	    fmt.Println(s.Data, s.Loading, s.Error)
	})
	defer unsubscribe()

	count.Set(cellz.Value(1))
	count.Set(cellz.Reduce(func(prev int, _ *cellz.UpdateContext[int]) (int, error) {
	    return prev + 1, nil
	}))

Async updates mark the container loading until the work settles. Results
from work that has been superseded by a later Set are discarded:

	users.Set(cellz.Async(func(ctx context.Context) ([]User, error) {
	    return client.ListUsers(ctx)
	}))

	list, err := users.Wait().Await(ctx)

Lazy containers run their initializer on first read:

	profile := cellz.New(cellz.Async(loadProfile))

# Modes

A Mode decides whether and when an update runs:

	search.Set(query, cellz.Debounce(200*time.Millisecond)) // last call wins
	search.Set(query, cellz.Throttle(time.Second))          // at most once per window
	search.Set(query, cellz.Droppable())                     // skip while in flight

Custom modes are plain Mode functions that keep their own state on the
ModeContext.

# Batching

Notifications raised inside Batch are coalesced and flushed once when the
outermost batch returns:

	cellz.Batch(func() {
	    first.Set(cellz.Value("Ada"))
	    last.Set(cellz.Value("Lovelace"))
	})

# Derived Containers

Link and Derive compute a container from others. The selector waits until
every source has settled and reruns when any of them changes:

	total := cellz.Link(cellz.Sources{"items": items, "tax": tax},
	    func(vals cellz.Values, prev float64, _ *cellz.UpdateContext[float64]) (float64, error) {
	        list, _ := cellz.ValueOf[[]Item](vals, "items")
	        rate, _ := cellz.ValueOf[float64](vals, "tax")
	        return sum(list) * (1 + rate), nil
	    })

# Families

A Family creates and caches one container per key. Disposing a member
evicts it:

	todos := cellz.NewFamily(func(id int) *cellz.Container[Todo] {
	    return cellz.New(cellz.Async(func(ctx context.Context) (Todo, error) {
	        return fetchTodo(ctx, id)
	    }))
	})

# Hydration

Hydration captures container values into a Snapshot and seeds new
containers from it without running their initializers:

	h := cellz.Hydrate(nil)
	user := cellz.New(cellz.Async(loadUser), cellz.WithHydration[User](h.Of("user")))

	data, _ := h.Encode(cellz.JSONCodec{})

	snap, _ := cellz.DecodeSnapshot(cellz.JSONCodec{}, data)
	restored := cellz.New(cellz.Async(loadUser), cellz.WithHydration[User](cellz.Hydrate(snap).Of("user")))

# Feeds

A Feed keeps a container in sync with an external source. Raw bytes from a
Watcher are decoded, validated and passed through an optional pipz
pipeline before they are applied:

	feed := cellz.NewFeed(cellz.NewFileWatcher("/etc/app/settings.yaml"), settings,
	    cellz.WithRetry[Settings](3),
	    cellz.WithTimeout[Settings](time.Second),
	).Codec(cellz.YAMLCodec{})

	if err := feed.Start(ctx); err != nil {
	    return err
	}

Invalid changes are rejected and the previous value stays in place.

# Observability

Lifecycle events are emitted as capitan signals (ContainerSettled,
UpdateDropped, FeedValidationFailed and others) with the field keys
defined in this package. Metrics are reported through MetricsProvider;
see pkg/prometheus for a Prometheus implementation.
*/
package cellz
