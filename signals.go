package cellz

import "github.com/zoobzio/capitan"

// Container lifecycle signals.
var (
	// ContainerCreated is emitted when a Container is constructed.
	ContainerCreated = capitan.NewSignal(
		"cellz.container.created",
		"Container created",
	)

	// ContainerInitialized is emitted when the lazy initializer first runs.
	ContainerInitialized = capitan.NewSignal(
		"cellz.container.initialized",
		"Container initializer ran",
	)

	// ContainerLoading is emitted when a Container enters the loading state.
	ContainerLoading = capitan.NewSignal(
		"cellz.container.loading",
		"Asynchronous update started",
	)

	// ContainerSettled is emitted when a Container commits a new value.
	ContainerSettled = capitan.NewSignal(
		"cellz.container.settled",
		"Container value committed",
	)

	// ContainerFailed is emitted when an update records an error.
	ContainerFailed = capitan.NewSignal(
		"cellz.container.failed",
		"Container update failed",
	)

	// ContainerDisposed is emitted once when a Container is disposed.
	ContainerDisposed = capitan.NewSignal(
		"cellz.container.disposed",
		"Container disposed",
	)
)

// Update coordination signals.
var (
	// UpdateDropped is emitted when a concurrency mode skips an update.
	UpdateDropped = capitan.NewSignal(
		"cellz.update.dropped",
		"Update skipped by concurrency mode",
	)

	// UpdateDiscarded is emitted when an async settlement arrives after a
	// newer update and is thrown away.
	UpdateDiscarded = capitan.NewSignal(
		"cellz.update.discarded",
		"Stale asynchronous settlement discarded",
	)

	// BatchFlushed is emitted when the outermost batch delivers its
	// pending notifications.
	BatchFlushed = capitan.NewSignal(
		"cellz.batch.flushed",
		"Batched notifications delivered",
	)
)

// Family and hydration signals.
var (
	// FamilyMemberCreated is emitted when a family factory produces a member.
	FamilyMemberCreated = capitan.NewSignal(
		"cellz.family.member.created",
		"Family member created",
	)

	// FamilyMemberEvicted is emitted when a disposed member leaves its family.
	FamilyMemberEvicted = capitan.NewSignal(
		"cellz.family.member.evicted",
		"Family member evicted",
	)

	// HydrationAttached is emitted when a container claims a hydration slot.
	HydrationAttached = capitan.NewSignal(
		"cellz.hydration.attached",
		"Container attached to hydration slot",
	)

	// HydrationInvalidated is emitted when a change invalidates the cached
	// dehydrated snapshot.
	HydrationInvalidated = capitan.NewSignal(
		"cellz.hydration.invalidated",
		"Dehydrated snapshot invalidated",
	)
)

// Feed signals.
var (
	// FeedStarted is emitted when a Feed begins watching its source.
	FeedStarted = capitan.NewSignal(
		"cellz.feed.started",
		"Feed watching started",
	)

	// FeedStopped is emitted when a Feed stops watching.
	FeedStopped = capitan.NewSignal(
		"cellz.feed.stopped",
		"Feed watching stopped",
	)

	// FeedChangeReceived is emitted when raw data arrives from the watcher.
	FeedChangeReceived = capitan.NewSignal(
		"cellz.feed.change.received",
		"Raw change received from watcher",
	)

	// FeedDecodeFailed is emitted when raw data cannot be decoded.
	FeedDecodeFailed = capitan.NewSignal(
		"cellz.feed.decode.failed",
		"Decode failed",
	)

	// FeedValidationFailed is emitted when a decoded value fails validation.
	FeedValidationFailed = capitan.NewSignal(
		"cellz.feed.validation.failed",
		"Validation failed",
	)

	// FeedApplyFailed is emitted when the feed pipeline fails.
	FeedApplyFailed = capitan.NewSignal(
		"cellz.feed.apply.failed",
		"Pipeline failed",
	)
)
