package bridge

// Option alters a Bridge at construction time.
type Option func(*Bridge) error

// WithPermitWrite allows the client to write to the slave. Without
// this option input messages are silently dropped, which makes the
// session effectively read only.
func WithPermitWrite() Option {
	return func(bridge *Bridge) error {
		bridge.permitWrite = true
		return nil
	}
}

// WithRawOutput makes the session forward shell output as raw binary
// frames instead of JSON output envelopes. Used by the local process
// backend, whose clients consume the byte stream directly.
func WithRawOutput() Option {
	return func(bridge *Bridge) error {
		bridge.rawOutput = true
		return nil
	}
}

// WithBufferSize sets the chunk size for slave reads.
func WithBufferSize(size int) Option {
	return func(bridge *Bridge) error {
		bridge.bufferSize = size
		return nil
	}
}

// WithRegistry registers the session under id for its lifetime, so it
// can be inspected or stopped externally.
func WithRegistry(registry *Registry, id string) Option {
	return func(bridge *Bridge) error {
		bridge.registry = registry
		bridge.id = id
		return nil
	}
}
