// Package translator turns raw chat-platform gateway payloads into the
// panel's own event vocabulary.
//
// Translation is a pure computation: no lookups, no clocks beyond event
// stamping, no side effects. Anything the output needs that the native
// payload does not carry (previous values, mostly) must be handed in by
// the caller through the *Change wrapper types.
package translator

import (
	"github.com/bwmarrin/discordgo"
	"github.com/guildview/panel-service/internal/domain/event"
)

// Translation is the full yield of one native payload: the panel events to
// broadcast and the scopes they route under. Events are ordered: field-level
// sub-events first, the coarse republish last.
type Translation struct {
	Events []*event.Event
	Scopes []event.Scope
}

// Translate maps one native gateway payload onto panel events.
// The second return is false when the payload kind is not part of the
// panel's vocabulary or is too malformed to say anything about; such
// payloads are skipped upstream without an error.
func Translate(native any) (Translation, bool) {
	switch p := native.(type) {
	case *discordgo.GuildCreate:
		return translateGuildCreate(p)
	case GuildChange:
		return translateGuildChange(p)
	case *discordgo.GuildDelete:
		return translateGuildDelete(p)

	case *discordgo.ChannelCreate:
		return translateChannelCreate(p)
	case *discordgo.ChannelUpdate:
		return translateChannelUpdate(p)
	case *discordgo.ChannelDelete:
		return translateChannelDelete(p)

	case *discordgo.MessageCreate:
		return translateMessageCreate(p)
	case *discordgo.MessageUpdate:
		return translateMessageUpdate(p)
	case *discordgo.MessageDelete:
		return translateMessageDelete(p)
	case *discordgo.MessageReactionAdd:
		return translateReaction(event.KindReactionAdd, p.MessageReaction)
	case *discordgo.MessageReactionRemove:
		return translateReaction(event.KindReactionRemove, p.MessageReaction)

	case *discordgo.GuildMemberAdd:
		return translateMemberAdd(p)
	case *discordgo.GuildMemberRemove:
		return translateMemberRemove(p)
	case *discordgo.GuildMemberUpdate:
		return translateMemberUpdate(p)
	case PresenceChange:
		return translatePresenceChange(p)
	}

	return Translation{}, false
}

// guildScopes is the routing set for guild-level events.
func guildScopes(guildID string) []event.Scope {
	return []event.Scope{event.GuildScope(guildID)}
}

// channelScopes routes channel-level events to direct channel subscribers
// and to subscribers of the owning guild.
func channelScopes(channelID, guildID string) []event.Scope {
	scopes := []event.Scope{event.ChannelScope(channelID)}
	if guildID != "" {
		scopes = append(scopes, event.GuildScope(guildID))
	}
	return scopes
}
