package amqp

import (
	"context"
	"strings"

	"github.com/guildview/panel-service/internal/domain/event"
)

// AnnouncementV1 is the payload deploy tooling and incident bots
// publish to the ops exchange.
type AnnouncementV1 struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Severity string `json:"severity,omitempty"`
	GuildID  string `json:"guild_id,omitempty"`
}

// [ON_ANNOUNCE]
// OnAnnounceV1 turns an operator announcement into a panel frame.
// Without a guild id it goes service-wide; with one it follows the
// ordinary guild fan-out so only that guild's watchers see it.
func (i *Ingest) OnAnnounceV1(ctx context.Context, raw *AnnouncementV1) (*event.Event, []event.Scope, error) {
	body := strings.TrimSpace(raw.Body)
	if body == "" {
		i.logger.Warn("announcement without body dropped", "trace_id", TraceIDFrom(ctx))
		return nil, nil, nil
	}

	severity := strings.ToLower(strings.TrimSpace(raw.Severity))
	switch severity {
	case "info", "warning", "critical":
	default:
		severity = "info"
	}

	data := map[string]any{
		"title":    strings.TrimSpace(raw.Title),
		"body":     body,
		"severity": severity,
	}

	var scopes []event.Scope
	if raw.GuildID != "" {
		data["guild_id"] = raw.GuildID
		scopes = append(scopes, event.GuildScope(raw.GuildID))
	}
	return event.New(event.KindAnnounce, data), scopes, nil
}
