package api

import (
	"net/http"
	"time"

	"github.com/guildview/panel-service/internal/domain/model"
)

// GetStats is the operator dashboard feed: relay counters, mirror sizes and
// uptime in one snapshot. Mounted behind RequireAdmin.
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	report := model.StatsReport{
		Service:    "guildview-panel",
		Version:    model.ServerVersion,
		Uptime:     time.Since(h.startedAt),
		CapturedAt: time.Now(),
		Hub:        h.hub.Stats(),
		Mirror:     h.mirror.Stats(),
		Archive:    h.archive.Stats(),
	}

	h.respond(w, http.StatusOK, report)
}
