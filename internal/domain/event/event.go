package event

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is the uniform envelope for every frame flowing through the Hub.
// Translators produce it, sessions consume it, exporters republish it.
type Event struct {
	id         uuid.UUID
	kind       string
	occurredAt int64
	data       map[string]any

	// [WIRE_CACHE]
	// One event instance is shared by every subscribed session, so the wire
	// form is marshalled exactly once and reused. Session pumps race on the
	// first write, hence the atomic pointer.
	wire atomic.Pointer[[]byte]
}

// New builds an event stamped with a fresh ID and the current relay time.
func New(kind string, data map[string]any) *Event {
	return &Event{
		id:         uuid.New(),
		kind:       kind,
		occurredAt: time.Now().UnixMilli(),
		data:       data,
	}
}

func (e *Event) GetID() string           { return e.id.String() }
func (e *Event) GetKind() string         { return e.kind }
func (e *Event) GetOccurredAt() int64    { return e.occurredAt }
func (e *Event) GetData() map[string]any { return e.data }

// GetCached returns the previously stored wire form, or nil.
func (e *Event) GetCached() []byte {
	if p := e.wire.Load(); p != nil {
		return *p
	}
	return nil
}

// SetCached stores the wire form for reuse by later subscribers.
func (e *Event) SetCached(b []byte) {
	e.wire.Store(&b)
}
