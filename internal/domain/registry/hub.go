package registry

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/model"
)

// Interface guard
var _ Hubber = (*Hub)(nil)

// Hubber defines the gateway for session management and scope-keyed fan-out.
type Hubber interface {
	Open(identity model.Identity, meta SessionMetadata) *Session
	Subscribe(s *Session, sc event.Scope) bool
	Unsubscribe(s *Session, sc event.Scope) bool
	ScopesOf(s *Session) []event.Scope
	Publish(ev *event.Event, scopes ...event.Scope) int
	BroadcastAll(ev *event.Event) int
	Drop(s *Session, reason string)
	DrainTimeout() time.Duration
	Stats() model.HubStats
	Shutdown()
}

// Hub fans translated events out to every session subscribed to any of the
// event's scopes. Delivery is fire-and-forget: a slow client sheds its own
// backlog inside Session.Send and can never stall the publisher.
type Hub struct {
	index  *Index
	logger *slog.Logger
	config hubConfig

	// sessions tracks every open session, subscribed or not, for stats,
	// broadcast and shutdown.
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	done     chan struct{}
	stopOnce sync.Once

	published uint64 // [ATOMIC_FIELD]
	delivered uint64 // [ATOMIC_FIELD]
	missed    uint64 // [ATOMIC_FIELD]
}

type hubConfig struct {
	queueSize        int
	drainTimeout     time.Duration
	handshakeTimeout time.Duration
	sweepInterval    time.Duration
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger:   logger,
		sessions: make(map[uuid.UUID]*Session),
		done:     make(chan struct{}),
		config: hubConfig{
			queueSize:        256,
			drainTimeout:     5 * time.Second,
			handshakeTimeout: 10 * time.Second,
			sweepInterval:    30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.index = NewIndex(logger)

	// [JANITOR] Reclaims sessions stuck in the handshake phase.
	go h.sweepLoop()

	return h
}

// Open registers a new session in the Connecting state. The transport must
// call Activate after its handshake before any delivery happens.
func (h *Hub) Open(identity model.Identity, meta SessionMetadata) *Session {
	s := NewSession(identity, meta, h.config.queueSize)

	h.mu.Lock()
	h.sessions[s.GetID()] = s
	h.mu.Unlock()

	h.logger.Debug("session opened",
		"session_id", s.GetID(), "user_id", identity.UserID, "transport", meta.Transport)
	return s
}

func (h *Hub) Subscribe(s *Session, sc event.Scope) bool {
	if s == nil || s.State() == StateClosed {
		return false
	}
	return h.index.Subscribe(s, sc)
}

func (h *Hub) Unsubscribe(s *Session, sc event.Scope) bool {
	return h.index.Unsubscribe(s, sc)
}

func (h *Hub) ScopesOf(s *Session) []event.Scope {
	return h.index.ScopesOf(s)
}

// Publish delivers the event once to every session subscribed to at least
// one of the scopes. Overlapping scopes never duplicate a frame.
// Returns the number of sessions that accepted the event.
func (h *Hub) Publish(ev *event.Event, scopes ...event.Scope) int {
	if ev == nil {
		return 0
	}
	atomic.AddUint64(&h.published, 1)

	// [DEDUPE] Point-in-time recipient set across all scopes of this call.
	seen := make(map[*Session]struct{}, 8)
	delivered := 0
	for _, sc := range scopes {
		if sc.IsZero() {
			continue
		}
		for _, s := range h.index.SubscribersOf(sc) {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			if s.Send(ev) {
				delivered++
				atomic.AddUint64(&h.delivered, 1)
			} else {
				atomic.AddUint64(&h.missed, 1)
			}
		}
	}
	return delivered
}

// BroadcastAll pushes the event to every open session regardless of
// subscriptions. Reserved for service-wide frames like ops announcements.
func (h *Hub) BroadcastAll(ev *event.Event) int {
	if ev == nil {
		return 0
	}
	atomic.AddUint64(&h.published, 1)

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.Send(ev) {
			delivered++
			atomic.AddUint64(&h.delivered, 1)
		} else {
			atomic.AddUint64(&h.missed, 1)
		}
	}
	return delivered
}

// Drop tears a session down: closes it, detaches every subscription and
// forgets it. Safe to call more than once.
func (h *Hub) Drop(s *Session, reason string) {
	if s == nil {
		return
	}
	s.Close(reason)
	removed := h.index.DropSession(s)

	h.mu.Lock()
	delete(h.sessions, s.GetID())
	h.mu.Unlock()

	h.logger.Debug("session dropped",
		"session_id", s.GetID(), "reason", reason, "subscriptions", removed)
}

// DrainTimeout is the grace period transports give a closing session to
// flush its queue before the connection is cut.
func (h *Hub) DrainTimeout() time.Duration { return h.config.drainTimeout }

func (h *Hub) Stats() model.HubStats {
	guilds, channels, _ := h.index.Counts()

	h.mu.RLock()
	sessions := len(h.sessions)
	h.mu.RUnlock()

	return model.HubStats{
		Sessions:      sessions,
		GuildTopics:   guilds,
		ChannelTopics: channels,
		Published:     atomic.LoadUint64(&h.published),
		Delivered:     atomic.LoadUint64(&h.delivered),
		Dropped:       atomic.LoadUint64(&h.missed),
		Evicted:       h.evictedTotal(),
	}
}

// Shutdown notifies every session and tears the hub down.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		// Best-effort farewell frame, then close. The pump drains it.
		s.Send(event.New(event.KindClosed, map[string]any{
			"reason": "server_shutdown",
			"code":   "SHUTDOWN",
		}))
		h.Drop(s, "server_shutdown")
	}
	h.logger.Info("hub stopped", "sessions_closed", len(targets))
}

func (h *Hub) evictedTotal() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var n uint64
	for _, s := range h.sessions {
		n += s.EvictedCount()
	}
	return n
}

func (h *Hub) sweepLoop() {
	ticker := time.NewTicker(h.config.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// sweep reclaims sessions that opened but never finished their handshake.
func (h *Hub) sweep() {
	cutoff := time.Now().Add(-h.config.handshakeTimeout)

	h.mu.RLock()
	var stale []*Session
	for _, s := range h.sessions {
		if s.State() == StateConnecting && s.GetCreatedAt().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range stale {
		h.Drop(s, "handshake_timeout")
	}
	if len(stale) > 0 {
		h.logger.Warn("swept stale sessions", "count", len(stale))
	}
}
