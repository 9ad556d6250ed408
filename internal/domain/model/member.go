package model

import "time"

// PresenceStatus is the platform-reported availability of a member.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusIdle    PresenceStatus = "idle"
	StatusDND     PresenceStatus = "dnd"
	StatusOffline PresenceStatus = "offline"
)

// Member binds a platform user to a guild together with guild-local state.
type Member struct {
	GuildID  string         `json:"guild_id"`
	User     Author         `json:"user"`
	Nick     string         `json:"nick,omitempty"`
	Roles    []string       `json:"roles,omitempty"`
	JoinedAt time.Time      `json:"joined_at"`
	Presence PresenceStatus `json:"presence,omitempty"`
}

// DisplayName resolves the name the panel shows for this member.
// Guild nickname wins over the account name.
func (m *Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Name
}
