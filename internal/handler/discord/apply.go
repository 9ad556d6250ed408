package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/guildview/panel-service/internal/domain/model"
)

// Native to mirror mappings. These feed the store only; the wire shapes the
// clients see are built independently by the translator.

func mapGuild(g *discordgo.Guild) *model.Guild {
	return &model.Guild{
		ID:          g.ID,
		Name:        g.Name,
		Icon:        g.Icon,
		OwnerID:     g.OwnerID,
		Description: g.Description,
		MemberCount: g.MemberCount,
		JoinedAt:    g.JoinedAt,
	}
}

func mapChannel(c *discordgo.Channel) *model.Channel {
	return &model.Channel{
		ID:       c.ID,
		GuildID:  c.GuildID,
		ParentID: c.ParentID,
		Name:     c.Name,
		Topic:    c.Topic,
		Kind:     mapChannelKind(c.Type),
		Position: c.Position,
		NSFW:     c.NSFW,
	}
}

func mapMember(guildID string, m *discordgo.Member) *model.Member {
	if m.GuildID != "" {
		guildID = m.GuildID
	}
	mb := &model.Member{
		GuildID:  guildID,
		Nick:     m.Nick,
		Roles:    m.Roles,
		JoinedAt: m.JoinedAt,
	}
	if m.User != nil {
		mb.User = mapAuthor(m.User)
	}
	return mb
}

func mapMessage(m *discordgo.Message) *model.Message {
	msg := &model.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
		EditedAt:  m.EditedTimestamp,
	}
	if m.Author != nil {
		msg.Author = mapAuthor(m.Author)
	}
	for _, att := range m.Attachments {
		msg.Attachments = append(msg.Attachments, &model.Attachment{
			ID:       att.ID,
			URL:      att.URL,
			FileName: att.Filename,
			MimeType: att.ContentType,
			Size:     int64(att.Size),
		})
	}
	return msg
}

func mapAuthor(u *discordgo.User) model.Author {
	name := u.Username
	if u.GlobalName != "" {
		name = u.GlobalName
	}
	return model.Author{
		ID:     u.ID,
		Name:   name,
		Avatar: u.Avatar,
		Bot:    u.Bot,
	}
}

func mapPresence(st discordgo.Status) model.PresenceStatus {
	switch st {
	case discordgo.StatusOnline:
		return model.StatusOnline
	case discordgo.StatusIdle:
		return model.StatusIdle
	case discordgo.StatusDoNotDisturb:
		return model.StatusDND
	default:
		// Invisible never shows for other users; anything else is offline.
		return model.StatusOffline
	}
}

// mapChannelKind flattens the platform's channel type zoo into the panel's
// handful. Anything exotic renders as a text surface.
func mapChannelKind(t discordgo.ChannelType) model.ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return model.ChannelText
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return model.ChannelVoice
	case discordgo.ChannelTypeGuildCategory:
		return model.ChannelCategory
	case discordgo.ChannelTypeGuildNews:
		return model.ChannelAnnouncement
	case discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return model.ChannelThread
	default:
		return model.ChannelText
	}
}
