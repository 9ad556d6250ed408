package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/model"
)

//go:generate stringer -type=SessionState
type SessionState int32

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	StateConnecting SessionState = iota + 1
	StateActive
	StateClosing
	StateClosed
)

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type SessionMetadata struct {
	Transport string // "websocket" | "longpoll"
	RemoteIP  string
	UserAgent string
}

// Session is one client connection to the panel. It owns a bounded FIFO
// queue that decouples the Hub's fan-out from the client's network speed.
//
// [LIFECYCLE] Connecting -> Active -> Closing -> Closed. Transitions are
// one-way; Activate and Close may be called from any goroutine.
type Session struct {
	id        uuid.UUID
	identity  model.Identity
	metadata  SessionMetadata
	createdAt time.Time

	// [QUEUE]
	// Buffered channel acting as the per-session mailbox. It is never
	// closed: the consumer pump exits via done, and the GC reclaims it.
	queue chan *event.Event

	// [LIFECYCLE_CONTROL]
	// done is closed exactly once when the session leaves Active.
	done      chan struct{}
	closeOnce sync.Once
	reason    atomic.Pointer[string]
	state     atomic.Int32

	lastActivityAt int64  // [ATOMIC_FIELD]
	delivered      uint64 // [ATOMIC_FIELD]
	evicted        uint64 // [ATOMIC_FIELD]
	dropped        uint64 // [ATOMIC_FIELD]
}

func NewSession(identity model.Identity, meta SessionMetadata, queueSize int) *Session {
	s := &Session{
		id:        uuid.New(),
		identity:  identity,
		metadata:  meta,
		createdAt: time.Now(),
		queue:     make(chan *event.Event, queueSize),
		done:      make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	atomic.StoreInt64(&s.lastActivityAt, time.Now().UnixNano())
	return s
}

func (s *Session) GetID() uuid.UUID             { return s.id }
func (s *Session) GetIdentity() model.Identity  { return s.identity }
func (s *Session) GetMetadata() SessionMetadata { return s.metadata }
func (s *Session) GetCreatedAt() time.Time      { return s.createdAt }

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Activate moves the session from Connecting to Active after the transport
// handshake completes. Returns false if the session already left Connecting.
func (s *Session) Activate() bool {
	return s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive))
}

// Send enqueues an event for delivery. It never blocks the caller.
//
// [EVICT_OLDEST]
// When the queue is saturated the oldest pending frame is discarded to make
// room: a panel wants the freshest state, not a complete stale backlog.
// Sends to a session that is not Active are silently dropped, so late
// broadcasts racing a disconnect are a no-op by construction.
func (s *Session) Send(ev *event.Event) bool {
	if s.State() != StateActive {
		return false
	}
	s.touch()

	select {
	case s.queue <- ev:
		atomic.AddUint64(&s.delivered, 1)
		return true
	default:
	}

	// Saturated: drop the head, then retry once. A concurrent consumer may
	// have freed a slot in between, which is fine either way.
	select {
	case <-s.queue:
		atomic.AddUint64(&s.evicted, 1)
	default:
	}

	select {
	case s.queue <- ev:
		atomic.AddUint64(&s.delivered, 1)
		return true
	default:
		atomic.AddUint64(&s.dropped, 1)
		return false
	}
}

// Recv exposes the delivery queue to the transport pump.
func (s *Session) Recv() <-chan *event.Event { return s.queue }

// Done is closed when the session starts shutting down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close begins teardown. Safe to call concurrently and repeatedly; only the
// first reason wins. Pending frames stay in the queue for the pump to drain.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.reason.Store(&reason)
		close(s.done)
	})
}

// Finish marks the terminal state once the pump has drained or given up.
func (s *Session) Finish() {
	s.Close("finished")
	s.state.Store(int32(StateClosed))
}

func (s *Session) CloseReason() string {
	if p := s.reason.Load(); p != nil {
		return *p
	}
	return ""
}

// Queued reports the number of frames waiting in the mailbox.
func (s *Session) Queued() int { return len(s.queue) }

func (s *Session) EvictedCount() uint64 { return atomic.LoadUint64(&s.evicted) }
func (s *Session) DroppedCount() uint64 { return atomic.LoadUint64(&s.dropped) }

func (s *Session) touch() {
	atomic.StoreInt64(&s.lastActivityAt, time.Now().UnixNano())
}
