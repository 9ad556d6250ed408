package registry

import "time"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithQueueSize sets the [BACKPRESSURE] threshold.
// It defines the buffer capacity of each session's delivery queue.
func WithQueueSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.queueSize = size
		}
	}
}

// WithDrainTimeout bounds how long a closing session may keep flushing
// queued frames before the transport cuts the connection.
func WithDrainTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.drainTimeout = d
		}
	}
}

// WithHandshakeTimeout defines the [QUIET_PERIOD] after which a session
// still stuck in Connecting is considered abandoned.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.handshakeTimeout = d
		}
	}
}

// WithSweepInterval configures how often the [JANITOR] process runs
// to reclaim abandoned handshakes.
func WithSweepInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.sweepInterval = d
		}
	}
}
