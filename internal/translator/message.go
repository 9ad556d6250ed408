package translator

import (
	"github.com/bwmarrin/discordgo"
	"github.com/guildview/panel-service/internal/domain/event"
)

func translateMessageCreate(p *discordgo.MessageCreate) (Translation, bool) {
	if p == nil || p.Message == nil || p.ID == "" {
		return Translation{}, false
	}

	data := map[string]any{
		"message_id": p.ID,
		"channel_id": p.ChannelID,
		"guild_id":   p.GuildID,
		"content":    p.Content,
		"created_at": p.Timestamp.UnixMilli(),
	}
	if p.Author != nil {
		data["author"] = authorData(p.Author)
	}
	if len(p.Attachments) > 0 {
		data["attachments"] = attachmentData(p.Attachments)
	}

	return Translation{
		Events: []*event.Event{event.New(event.KindMessageCreate, data)},
		Scopes: channelScopes(p.ChannelID, p.GuildID),
	}, true
}

// translateMessageUpdate carries identifiers plus old and new content.
// Gateway edits are partial payloads: author and timestamps are frequently
// absent, and the panel already holds the rest from the create. The old
// body rides along only when state tracking still had the message cached.
func translateMessageUpdate(p *discordgo.MessageUpdate) (Translation, bool) {
	if p == nil || p.Message == nil || p.ID == "" {
		return Translation{}, false
	}

	data := map[string]any{
		"message_id": p.ID,
		"channel_id": p.ChannelID,
		"guild_id":   p.GuildID,
		"content":    p.Content,
	}
	if p.BeforeUpdate != nil {
		data["old_content"] = p.BeforeUpdate.Content
	}
	if p.EditedTimestamp != nil {
		data["edited_at"] = p.EditedTimestamp.UnixMilli()
	}

	return Translation{
		Events: []*event.Event{event.New(event.KindMessageUpdate, data)},
		Scopes: channelScopes(p.ChannelID, p.GuildID),
	}, true
}

func translateMessageDelete(p *discordgo.MessageDelete) (Translation, bool) {
	if p == nil || p.Message == nil || p.ID == "" {
		return Translation{}, false
	}
	return Translation{
		Events: []*event.Event{event.New(event.KindMessageDelete, map[string]any{
			"message_id": p.ID,
			"channel_id": p.ChannelID,
			"guild_id":   p.GuildID,
		})},
		Scopes: channelScopes(p.ChannelID, p.GuildID),
	}, true
}

func translateReaction(kind string, r *discordgo.MessageReaction) (Translation, bool) {
	if r == nil || r.MessageID == "" {
		return Translation{}, false
	}

	emoji := map[string]any{"name": r.Emoji.Name}
	if r.Emoji.ID != "" {
		emoji["id"] = r.Emoji.ID
	}

	return Translation{
		Events: []*event.Event{event.New(kind, map[string]any{
			"message_id": r.MessageID,
			"channel_id": r.ChannelID,
			"guild_id":   r.GuildID,
			"user_id":    r.UserID,
			"emoji":      emoji,
		})},
		Scopes: channelScopes(r.ChannelID, r.GuildID),
	}, true
}

func authorData(u *discordgo.User) map[string]any {
	return map[string]any{
		"id":   u.ID,
		"name": displayName(u),
		"bot":  u.Bot,
	}
}

func attachmentData(atts []*discordgo.MessageAttachment) []map[string]any {
	out := make([]map[string]any, 0, len(atts))
	for _, a := range atts {
		out = append(out, map[string]any{
			"id":        a.ID,
			"url":       a.URL,
			"file_name": a.Filename,
			"mime_type": a.ContentType,
			"size":      a.Size,
		})
	}
	return out
}

// displayName prefers the account-level display name over the login name.
func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
