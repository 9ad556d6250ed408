package translator

import (
	"github.com/bwmarrin/discordgo"
	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/model"
)

// PresenceChange pairs a native presence update with the previously cached
// status. Presence payloads never carry old values, so the adapter supplies
// them; an empty Before means "first sighting" and is omitted from the wire.
type PresenceChange struct {
	Before model.PresenceStatus
	Update *discordgo.PresenceUpdate
}

func translateMemberAdd(p *discordgo.GuildMemberAdd) (Translation, bool) {
	if p == nil || p.Member == nil || p.User == nil {
		return Translation{}, false
	}
	return Translation{
		Events: []*event.Event{event.New(event.KindMemberAdd, map[string]any{
			"guild_id":  p.GuildID,
			"user":      authorData(p.User),
			"nick":      p.Nick,
			"joined_at": p.JoinedAt.UnixMilli(),
		})},
		Scopes: guildScopes(p.GuildID),
	}, true
}

func translateMemberRemove(p *discordgo.GuildMemberRemove) (Translation, bool) {
	if p == nil || p.Member == nil || p.User == nil {
		return Translation{}, false
	}
	return Translation{
		Events: []*event.Event{event.New(event.KindMemberRemove, map[string]any{
			"guild_id": p.GuildID,
			"user_id":  p.User.ID,
		})},
		Scopes: guildScopes(p.GuildID),
	}, true
}

func translateMemberUpdate(p *discordgo.GuildMemberUpdate) (Translation, bool) {
	if p == nil || p.Member == nil || p.User == nil {
		return Translation{}, false
	}

	var events []*event.Event

	// [FIELD_DIFF] Nick is the only member field with a focused sub-event.
	if p.BeforeUpdate != nil && p.BeforeUpdate.Nick != p.Nick {
		events = append(events, event.New(event.KindMemberUpdateNick, map[string]any{
			"guild_id": p.GuildID,
			"user_id":  p.User.ID,
			"old_nick": p.BeforeUpdate.Nick,
			"new_nick": p.Nick,
		}))
	}

	events = append(events, event.New(event.KindMemberUpdate, map[string]any{
		"guild_id": p.GuildID,
		"user":     authorData(p.User),
		"nick":     p.Nick,
		"roles":    p.Roles,
	}))

	return Translation{Events: events, Scopes: guildScopes(p.GuildID)}, true
}

func translatePresenceChange(p PresenceChange) (Translation, bool) {
	if p.Update == nil || p.Update.User == nil || p.Update.GuildID == "" {
		return Translation{}, false
	}

	data := map[string]any{
		"guild_id": p.Update.GuildID,
		"user_id":  p.Update.User.ID,
		"status":   string(p.Update.Status),
	}
	if p.Before != "" {
		data["old_status"] = string(p.Before)
	}

	return Translation{
		Events: []*event.Event{event.New(event.KindPresenceUpdate, data)},
		Scopes: guildScopes(p.Update.GuildID),
	}, true
}
