package translator

import (
	"github.com/bwmarrin/discordgo"
	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/model"
)

// GuildChange pairs a native guild update with the previous mirror state.
// The gateway does not replay old values for guilds, so the adapter looks
// them up before applying the update and hands both sides in here.
type GuildChange struct {
	Before *model.Guild
	Guild  *discordgo.Guild
}

func translateGuildCreate(p *discordgo.GuildCreate) (Translation, bool) {
	if p == nil || p.Guild == nil || p.ID == "" {
		return Translation{}, false
	}
	return Translation{
		Events: []*event.Event{event.New(event.KindGuildCreate, guildData(p.Guild))},
		Scopes: guildScopes(p.ID),
	}, true
}

func translateGuildChange(p GuildChange) (Translation, bool) {
	if p.Guild == nil || p.Guild.ID == "" {
		return Translation{}, false
	}

	var events []*event.Event

	// [FIELD_DIFF]
	// Emit the focused sub-event only when the previous value is known and
	// actually differs. An unknown before degrades to the coarse event alone:
	// the panel never fabricates an old value.
	if p.Before != nil && p.Before.Name != p.Guild.Name {
		events = append(events, event.New(event.KindGuildUpdateName, map[string]any{
			"guild_id": p.Guild.ID,
			"old_name": p.Before.Name,
			"new_name": p.Guild.Name,
		}))
	}

	events = append(events, event.New(event.KindGuildUpdate, guildData(p.Guild)))

	return Translation{Events: events, Scopes: guildScopes(p.Guild.ID)}, true
}

func translateGuildDelete(p *discordgo.GuildDelete) (Translation, bool) {
	if p == nil || p.Guild == nil || p.ID == "" {
		return Translation{}, false
	}
	data := map[string]any{"guild_id": p.ID}
	if p.Unavailable {
		// Outage, not a removal: the guild may come back on its own.
		data["unavailable"] = true
	}
	return Translation{
		Events: []*event.Event{event.New(event.KindGuildDelete, data)},
		Scopes: guildScopes(p.ID),
	}, true
}

// guildData is the coarse guild snapshot payload, shared by create and update.
func guildData(g *discordgo.Guild) map[string]any {
	return map[string]any{
		"guild_id":     g.ID,
		"name":         g.Name,
		"icon":         g.Icon,
		"owner_id":     g.OwnerID,
		"description":  g.Description,
		"member_count": g.MemberCount,
	}
}
