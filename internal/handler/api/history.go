package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	httpserver "github.com/guildview/panel-service/infra/server/http"
	"github.com/guildview/panel-service/internal/domain/model"
	"github.com/guildview/panel-service/internal/domain/registry"
	"github.com/guildview/panel-service/internal/service"
	"github.com/guildview/panel-service/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ArchiveHealth feeds the durable store's counters into the stats page.
type ArchiveHealth interface {
	Stats() model.ArchiveStats
}

// APIHandler serves the REST read surface: current structure, message
// history, text search and the operator stats page.
type APIHandler struct {
	logger    *slog.Logger
	historian service.Historian
	hub       registry.Hubber
	mirror    *store.Mirror
	archive   ArchiveHealth
	startedAt time.Time
}

func NewAPIHandler(logger *slog.Logger, historian service.Historian, hub registry.Hubber, mirror *store.Mirror, archive ArchiveHealth) *APIHandler {
	return &APIHandler{
		logger:    logger,
		historian: historian,
		hub:       hub,
		mirror:    mirror,
		archive:   archive,
		startedAt: time.Now(),
	}
}

// ListGuilds answers with the guilds the caller is allowed to see, not the
// full roster the panel tracks.
func (h *APIHandler) ListGuilds(w http.ResponseWriter, r *http.Request) {
	identity, _ := httpserver.IdentityFrom(r.Context())

	visible := make([]*model.Guild, 0)
	for _, g := range h.historian.Guilds(r.Context()) {
		if identity.Grants.AllowsGuild(g.ID) {
			visible = append(visible, g)
		}
	}

	h.respond(w, http.StatusOK, visible)
}

func (h *APIHandler) GetGuild(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	identity, _ := httpserver.IdentityFrom(r.Context())

	// Grant check first: an unauthorized caller learns nothing about
	// whether the guild exists.
	if !identity.Grants.AllowsGuild(guildID) {
		http.Error(w, "guild not covered by your grants", http.StatusForbidden)
		return
	}

	guild, ok := h.historian.Guild(r.Context(), guildID)
	if !ok {
		http.Error(w, "guild not tracked", http.StatusNotFound)
		return
	}

	h.respond(w, http.StatusOK, guild)
}

func (h *APIHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	identity, _ := httpserver.IdentityFrom(r.Context())

	if !identity.Grants.AllowsGuild(guildID) {
		http.Error(w, "guild not covered by your grants", http.StatusForbidden)
		return
	}

	h.respond(w, http.StatusOK, h.historian.Channels(r.Context(), guildID))
}

func (h *APIHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	identity, _ := httpserver.IdentityFrom(r.Context())

	if !identity.Grants.AllowsGuild(guildID) {
		http.Error(w, "guild not covered by your grants", http.StatusForbidden)
		return
	}

	h.respond(w, http.StatusOK, h.historian.Members(r.Context(), guildID))
}

func (h *APIHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	identity, _ := httpserver.IdentityFrom(r.Context())

	if !identity.Grants.AllowsGuild(guildID) {
		http.Error(w, "guild not covered by your grants", http.StatusForbidden)
		return
	}

	overview, err := h.historian.Overview(r.Context(), guildID)
	if err != nil {
		if errors.Is(err, service.ErrGuildUnknown) {
			http.Error(w, "guild not tracked", http.StatusNotFound)
			return
		}
		h.logger.Error("overview build failed", "guild_id", guildID, "err", err)
		http.Error(w, "overview unavailable", http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, overview)
}

// ListMessages pages backwards through a channel timeline.
// Query: before (unix ms, optional), limit (default 50, max 200).
func (h *APIHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	identity, _ := httpserver.IdentityFrom(r.Context())

	if !h.allowsChannel(identity, channelID) {
		http.Error(w, "channel not covered by your grants", http.StatusForbidden)
		return
	}

	q := model.MessageQuery{
		ChannelID: channelID,
		Limit:     pageSize(r),
	}
	if raw := r.URL.Query().Get("before"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "before must be a unix millisecond timestamp", http.StatusBadRequest)
			return
		}
		q.Before = time.UnixMilli(ms)
	}

	msgs, err := h.historian.Messages(r.Context(), q)
	if err != nil {
		h.logger.Error("history read failed", "channel_id", channelID, "err", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, msgs)
}

// Search runs a text match inside one guild or one channel.
// Query: q (required), guild or channel (one required), limit.
func (h *APIHandler) Search(w http.ResponseWriter, r *http.Request) {
	identity, _ := httpserver.IdentityFrom(r.Context())
	query := r.URL.Query()

	text := query.Get("q")
	if text == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	q := model.SearchQuery{
		GuildID:   query.Get("guild"),
		ChannelID: query.Get("channel"),
		Text:      text,
		Limit:     pageSize(r),
	}

	switch {
	case q.ChannelID != "":
		if !h.allowsChannel(identity, q.ChannelID) {
			http.Error(w, "channel not covered by your grants", http.StatusForbidden)
			return
		}
	case q.GuildID != "":
		if !identity.Grants.AllowsGuild(q.GuildID) {
			http.Error(w, "guild not covered by your grants", http.StatusForbidden)
			return
		}
	default:
		http.Error(w, "guild or channel is required", http.StatusBadRequest)
		return
	}

	hits, err := h.historian.Search(r.Context(), q)
	if err != nil {
		h.logger.Error("search failed", "guild_id", q.GuildID, "err", err)
		http.Error(w, "search unavailable", http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, hits)
}

func (h *APIHandler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "err", err)
	}
}

// allowsChannel resolves the channel's guild through the mirror, mirroring
// the subscribe-time rule: unknown channels stay admin-only.
func (h *APIHandler) allowsChannel(identity model.Identity, channelID string) bool {
	guildID := ""
	if ch, ok := h.mirror.Channel(channelID); ok {
		guildID = ch.GuildID
	}
	return identity.Grants.AllowsChannel(channelID, guildID)
}

func pageSize(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageSize
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultPageSize
	}
	return min(n, maxPageSize)
}
