package model

import "time"

// [MESSAGE] CORE ENTITY REPRESENTING A CHANNEL TIMELINE ELEMENT
type Message struct {
	ID          string        `json:"id"`
	ChannelID   string        `json:"channel_id"`
	GuildID     string        `json:"guild_id"`
	Author      Author        `json:"author"`
	Content     string        `json:"content"`
	CreatedAt   time.Time     `json:"created_at"`
	EditedAt    *time.Time    `json:"edited_at,omitempty"`
	Attachments []*Attachment `json:"attachments,omitempty"`
}

// Author carries the subset of profile data the panel renders next to a message.
type Author struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Bot    bool   `json:"bot,omitempty"`
}

type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size"`
}

// MessageQuery narrows a timeline read to one channel and an upper time bound.
type MessageQuery struct {
	ChannelID string
	Before    time.Time
	Limit     int
}

// SearchQuery describes a substring scan over archived message bodies.
type SearchQuery struct {
	GuildID   string
	ChannelID string
	Text      string
	Limit     int
}
