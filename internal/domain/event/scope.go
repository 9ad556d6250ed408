package event

import "fmt"

//go:generate stringer -type=ScopeKind
type ScopeKind int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	ScopeGuild ScopeKind = iota + 1
	ScopeChannel
)

// Scope is a subscription topic: one guild or one channel.
// It is a comparable value type so it can key registry maps directly.
type Scope struct {
	Kind ScopeKind
	ID   string
}

func GuildScope(guildID string) Scope {
	return Scope{Kind: ScopeGuild, ID: guildID}
}

func ChannelScope(channelID string) Scope {
	return Scope{Kind: ScopeChannel, ID: channelID}
}

func (s Scope) IsZero() bool {
	return s.Kind == 0 || s.ID == ""
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeGuild:
		return fmt.Sprintf("guild:%s", s.ID)
	case ScopeChannel:
		return fmt.Sprintf("channel:%s", s.ID)
	}
	return fmt.Sprintf("scope(%d):%s", s.Kind, s.ID)
}
