package lp

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/guildview/panel-service/config"
	httpserver "github.com/guildview/panel-service/infra/server/http"
	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/registry"
	lpmarshaller "github.com/guildview/panel-service/internal/handler/marshaller/lp"
	"github.com/guildview/panel-service/internal/service"
)

type LPHandler struct {
	logger      *slog.Logger
	deliverer   service.Deliverer
	pollTimeout time.Duration
	batchLimit  int
}

func NewLPHandler(logger *slog.Logger, deliverer service.Deliverer, cfg *config.Config) *LPHandler {
	return &LPHandler{
		logger:      logger,
		deliverer:   deliverer,
		pollTimeout: cfg.Relay.LongPollTimeout,
		batchLimit:  cfg.Relay.LongPollBatch,
	}
}

// Poll holds the request open until an event lands in any requested scope or
// the wait budget runs out. Every poll is its own short-lived session; a
// client that wants continuity simply polls again.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	identity, ok := httpserver.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	scopes := scopesFromQuery(r)
	if len(scopes) == 0 {
		http.Error(w, "at least one guild or channel scope is required", http.StatusBadRequest)
		return
	}

	sess, _ := h.deliverer.Open(identity, registry.SessionMetadata{
		Transport: "longpoll",
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	defer h.deliverer.Close(sess, "poll finished")

	// No handshake phase over plain HTTP.
	sess.Activate()

	ack := h.deliverer.Subscribe(sess, scopes)
	if granted, _ := ack.GetData()["granted"].([]string); len(granted) == 0 {
		http.Error(w, "no requested scope is covered by your grants", http.StatusForbidden)
		return
	}

	var events []*event.Event

	select {
	case <-r.Context().Done():
		// Client disconnected.
		return

	case <-time.After(h.pollTimeout):
		w.WriteHeader(http.StatusNoContent)
		return

	case ev := <-sess.Recv():
		events = append(events, ev)

		// Drain whatever else already queued up, so bursts cost one
		// round-trip instead of one poll per event.
	drainLoop:
		for i := 0; i < h.batchLimit-1; i++ {
			select {
			case next := <-sess.Recv():
				events = append(events, next)
			default:
				break drainLoop
			}
		}
	}

	data, err := lpmarshaller.MarshallBatch(events)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// scopesFromQuery reads ?guilds=g1,g2&channels=c3 into domain scopes.
func scopesFromQuery(r *http.Request) []event.Scope {
	var scopes []event.Scope
	for _, id := range splitList(r.URL.Query().Get("guilds")) {
		scopes = append(scopes, event.GuildScope(id))
	}
	for _, id := range splitList(r.URL.Query().Get("channels")) {
		scopes = append(scopes, event.ChannelScope(id))
	}
	return scopes
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
