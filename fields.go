package cellz

import "github.com/zoobzio/capitan"

// Field keys for cellz events.
var (
	// KeyContainer is the name of the container an event concerns.
	KeyContainer = capitan.NewStringKey("container")

	// KeyUpdate is the kind of update being applied.
	KeyUpdate = capitan.NewStringKey("update")

	// KeyMode is the concurrency mode that made a decision.
	KeyMode = capitan.NewStringKey("mode")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyKey is the family or hydration key involved.
	KeyKey = capitan.NewStringKey("key")

	// KeyPending is the number of containers flushed by a batch.
	KeyPending = capitan.NewIntKey("pending")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")

	// KeyState is the final container phase when a feed stops.
	KeyState = capitan.NewStringKey("state")
)
