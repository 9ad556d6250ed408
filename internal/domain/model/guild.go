package model

import "time"

// Guild is the top-level community container mirrored from the chat platform.
type Guild struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon,omitempty"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description,omitempty"`
	MemberCount int       `json:"member_count"`
	JoinedAt    time.Time `json:"joined_at"`
}

//go:generate stringer -type=ChannelKind
type ChannelKind int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	ChannelText ChannelKind = iota + 1
	ChannelVoice
	ChannelCategory
	ChannelAnnouncement
	ChannelThread
)

// Channel is a single conversation surface inside a guild.
type Channel struct {
	ID       string      `json:"id"`
	GuildID  string      `json:"guild_id"`
	ParentID string      `json:"parent_id,omitempty"`
	Name     string      `json:"name"`
	Topic    string      `json:"topic,omitempty"`
	Kind     ChannelKind `json:"kind"`
	Position int         `json:"position"`
	NSFW     bool        `json:"nsfw,omitempty"`
}
