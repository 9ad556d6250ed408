package service

import (
	"log/slog"
	"time"

	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/model"
	"github.com/guildview/panel-service/internal/domain/registry"
	"github.com/guildview/panel-service/internal/store"
)

// Interface guard
var _ Deliverer = (*DeliveryService)(nil)

// [DELIVERY_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS (WebSocket/long-poll)
type Deliverer interface {
	// Open admits an authenticated client and returns its session together
	// with the READY frame the transport must deliver first.
	Open(identity model.Identity, meta registry.SessionMetadata) (*registry.Session, *event.Event)
	// Subscribe attaches the session to every granted scope and answers
	// with an ack listing what was granted and what was denied.
	Subscribe(sess *registry.Session, scopes []event.Scope) *event.Event
	// Unsubscribe detaches the session from the given scopes.
	Unsubscribe(sess *registry.Session, scopes []event.Scope) *event.Event
	// Close drops the session from the relay. Safe to call twice.
	Close(sess *registry.Session, reason string)
	// DrainTimeout is how long a transport may keep flushing a closed
	// session's queue before cutting the connection.
	DrainTimeout() time.Duration
}

type DeliveryService struct {
	hub    registry.Hubber
	mirror *store.Mirror
	logger *slog.Logger
}

// NewDeliveryService returns a production-ready instance of the service.
func NewDeliveryService(hub registry.Hubber, mirror *store.Mirror, logger *slog.Logger) *DeliveryService {
	return &DeliveryService{
		hub:    hub,
		mirror: mirror,
		logger: logger,
	}
}

// [OPEN] HANDLES CONNECTION LIFECYCLE INITIATION
func (s *DeliveryService) Open(identity model.Identity, meta registry.SessionMetadata) (*registry.Session, *event.Event) {
	sess := s.hub.Open(identity, meta)

	ready := event.New(event.KindReady, map[string]any{
		"ok":             true,
		"session_id":     sess.GetID(),
		"server_version": model.ServerVersion,
		"user_id":        identity.UserID,
		"user_name":      identity.Name,
		"grants":         identity.Grants,
	})

	return sess, ready
}

// Subscribe checks the session's grant set once, here. Past this point the
// relay trusts the subscription: delivery never re-validates per event.
func (s *DeliveryService) Subscribe(sess *registry.Session, scopes []event.Scope) *event.Event {
	granted := make([]string, 0, len(scopes))
	denied := make([]string, 0)

	for _, sc := range scopes {
		if !s.allowed(sess.GetIdentity().Grants, sc) {
			denied = append(denied, sc.String())
			continue
		}
		s.hub.Subscribe(sess, sc)
		granted = append(granted, sc.String())
	}

	if len(denied) > 0 {
		s.logger.Info("subscription partially denied",
			slog.String("session_id", sess.GetID().String()),
			slog.String("user_id", sess.GetIdentity().UserID),
			slog.Any("denied", denied),
		)
	}

	return event.New(event.KindSubscribeAck, map[string]any{
		"granted": granted,
		"denied":  denied,
	})
}

// Unsubscribe needs no grant check: dropping visibility is always permitted.
func (s *DeliveryService) Unsubscribe(sess *registry.Session, scopes []event.Scope) *event.Event {
	removed := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		if s.hub.Unsubscribe(sess, sc) {
			removed = append(removed, sc.String())
		}
	}

	return event.New(event.KindUnsubscribeAck, map[string]any{
		"removed": removed,
	})
}

// [CLOSE] TRIGGERS REGISTRY CLEANUP
func (s *DeliveryService) Close(sess *registry.Session, reason string) {
	s.hub.Drop(sess, reason)
}

func (s *DeliveryService) DrainTimeout() time.Duration {
	return s.hub.DrainTimeout()
}

// allowed resolves a scope against the grant set. Channel scopes are checked
// through their owning guild when the mirror knows it; a channel the mirror
// has never seen is denied to non-admins, since its guild cannot be proven.
func (s *DeliveryService) allowed(grants model.Grants, sc event.Scope) bool {
	switch sc.Kind {
	case event.ScopeGuild:
		return grants.AllowsGuild(sc.ID)
	case event.ScopeChannel:
		guildID := ""
		if ch, ok := s.mirror.Channel(sc.ID); ok {
			guildID = ch.GuildID
		}
		return grants.AllowsChannel(sc.ID, guildID)
	}
	return false
}
