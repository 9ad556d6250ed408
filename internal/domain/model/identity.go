package model

// Identity is the authenticated principal behind a panel session.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Grants Grants `json:"grants"`
}

// GrantAll is the wildcard entry for grant lists. A token carrying it in
// Guilds sees every guild without the admin bit.
const GrantAll = "*"

// Grants is the visibility scope attached to an access token.
//
// [AUTHORIZATION_MODEL]
// Admin short-circuits every check. Otherwise a guild grant covers the whole
// guild including its channels, and a channel grant covers exactly one channel.
type Grants struct {
	Admin    bool     `json:"admin,omitempty"`
	Guilds   []string `json:"guilds,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// AllowsGuild reports whether the grant set covers the given guild.
func (g Grants) AllowsGuild(guildID string) bool {
	if g.Admin {
		return true
	}
	for _, id := range g.Guilds {
		if id == guildID || id == GrantAll {
			return true
		}
	}
	return false
}

// AllowsChannel reports whether the grant set covers the given channel,
// either directly or through its owning guild.
func (g Grants) AllowsChannel(channelID, guildID string) bool {
	if g.Admin {
		return true
	}
	for _, id := range g.Channels {
		if id == channelID || id == GrantAll {
			return true
		}
	}
	if guildID != "" {
		return g.AllowsGuild(guildID)
	}
	return false
}
