package cellz

// Request carries one decoded value through a Feed pipeline.
type Request[T any] struct {
	// Previous is the container value before this change.
	Previous T

	// Current is the decoded and validated value. Pipeline stages may
	// replace it; whatever is left is written to the container.
	Current T

	// Raw is the encoded value received from the watcher.
	Raw []byte
}
