package wsmarshaller

import (
	"github.com/guildview/panel-service/internal/domain/event"
)

// Supported client operations.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPing        = "ping"
)

// Command is a client-to-server control frame. Subscribe and unsubscribe carry
// scope id lists; ping carries nothing.
type Command struct {
	Op       string   `json:"op"`
	Guilds   []string `json:"guilds,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// Scopes flattens the id lists into domain scopes, skipping empty ids and
// collapsing duplicates so the registry sees each scope at most once.
func (c *Command) Scopes() []event.Scope {
	out := make([]event.Scope, 0, len(c.Guilds)+len(c.Channels))
	seen := make(map[event.Scope]struct{}, len(c.Guilds)+len(c.Channels))

	push := func(sc event.Scope) {
		if sc.IsZero() {
			return
		}
		if _, dup := seen[sc]; dup {
			return
		}
		seen[sc] = struct{}{}
		out = append(out, sc)
	}

	for _, id := range c.Guilds {
		push(event.GuildScope(id))
	}
	for _, id := range c.Channels {
		push(event.ChannelScope(id))
	}

	return out
}
