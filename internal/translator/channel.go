package translator

import (
	"github.com/bwmarrin/discordgo"
	"github.com/guildview/panel-service/internal/domain/event"
)

func translateChannelCreate(p *discordgo.ChannelCreate) (Translation, bool) {
	if p == nil || p.Channel == nil || p.ID == "" {
		return Translation{}, false
	}
	return Translation{
		Events: []*event.Event{event.New(event.KindChannelCreate, channelData(p.Channel))},
		Scopes: channelScopes(p.ID, p.GuildID),
	}, true
}

func translateChannelUpdate(p *discordgo.ChannelUpdate) (Translation, bool) {
	if p == nil || p.Channel == nil || p.ID == "" {
		return Translation{}, false
	}

	var events []*event.Event
	before := p.BeforeUpdate

	// [FIELD_DIFF]
	// One native update may rename, re-topic and re-parent at once. Each
	// tracked field yields its own sub-event, in a fixed order, so client
	// reducers stay trivial. No before-state means coarse-only degradation.
	if before != nil {
		if before.Name != p.Name {
			events = append(events, event.New(event.KindChannelUpdateName, map[string]any{
				"channel_id": p.ID,
				"guild_id":   p.GuildID,
				"old_name":   before.Name,
				"new_name":   p.Name,
			}))
		}
		if before.Topic != p.Topic {
			events = append(events, event.New(event.KindChannelUpdateTopic, map[string]any{
				"channel_id": p.ID,
				"guild_id":   p.GuildID,
				"old_topic":  before.Topic,
				"new_topic":  p.Topic,
			}))
		}
		if before.ParentID != p.ParentID {
			events = append(events, event.New(event.KindChannelUpdateParent, map[string]any{
				"channel_id":    p.ID,
				"guild_id":      p.GuildID,
				"old_parent_id": before.ParentID,
				"new_parent_id": p.ParentID,
			}))
		}
	}

	events = append(events, event.New(event.KindChannelUpdate, channelData(p.Channel)))

	return Translation{Events: events, Scopes: channelScopes(p.ID, p.GuildID)}, true
}

func translateChannelDelete(p *discordgo.ChannelDelete) (Translation, bool) {
	if p == nil || p.Channel == nil || p.ID == "" {
		return Translation{}, false
	}
	return Translation{
		Events: []*event.Event{event.New(event.KindChannelDelete, map[string]any{
			"channel_id": p.ID,
			"guild_id":   p.GuildID,
		})},
		Scopes: channelScopes(p.ID, p.GuildID),
	}, true
}

// channelData is the coarse channel snapshot payload.
func channelData(c *discordgo.Channel) map[string]any {
	return map[string]any{
		"channel_id": c.ID,
		"guild_id":   c.GuildID,
		"parent_id":  c.ParentID,
		"name":       c.Name,
		"topic":      c.Topic,
		"kind":       channelKind(c.Type),
		"position":   c.Position,
	}
}

// channelKind flattens the platform's channel type zoo into the handful of
// kinds the panel distinguishes.
func channelKind(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return "text"
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return "voice"
	case discordgo.ChannelTypeGuildCategory:
		return "category"
	case discordgo.ChannelTypeGuildNews:
		return "announcement"
	case discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return "thread"
	default:
		return "other"
	}
}
