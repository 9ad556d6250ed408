package registry

import (
	"log/slog"
	"sync"

	"github.com/guildview/panel-service/internal/domain/event"
)

// Index is the subscription table mapping scopes to sessions.
//
// [CONSISTENCY]
// Two forward maps (guild, channel) and one reverse map are kept in lockstep
// under a single mutex: every (scope, session) pair present in a forward map
// is present in the reverse map and vice versa. The reverse map is what makes
// full detach O(scopes of the session) instead of O(all scopes).
type Index struct {
	mu       sync.RWMutex
	guilds   map[string]map[*Session]struct{}
	channels map[string]map[*Session]struct{}
	reverse  map[*Session]map[event.Scope]struct{}
	logger   *slog.Logger
}

func NewIndex(logger *slog.Logger) *Index {
	return &Index{
		guilds:   make(map[string]map[*Session]struct{}),
		channels: make(map[string]map[*Session]struct{}),
		reverse:  make(map[*Session]map[event.Scope]struct{}),
		logger:   logger,
	}
}

// forward returns the scope's forward bucket map.
func (i *Index) forward(sc event.Scope) map[string]map[*Session]struct{} {
	if sc.Kind == event.ScopeChannel {
		return i.channels
	}
	return i.guilds
}

// Subscribe registers the session under the scope. Returns false when the
// pair already existed, making repeated subscribes a no-op.
func (i *Index) Subscribe(s *Session, sc event.Scope) bool {
	if s == nil || sc.IsZero() {
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	fwd := i.forward(sc)
	set, ok := fwd[sc.ID]
	if !ok {
		set = make(map[*Session]struct{})
		fwd[sc.ID] = set
	}
	if _, dup := set[s]; dup {
		// Forward says subscribed: the reverse entry must exist too.
		if _, ok := i.reverse[s][sc]; !ok {
			i.logger.Error("subscription index out of sync, repairing",
				"session_id", s.GetID(), "scope", sc.String(), "missing", "reverse")
			i.reverseAdd(s, sc)
		}
		return false
	}

	set[s] = struct{}{}
	i.reverseAdd(s, sc)
	return true
}

// Unsubscribe removes the pair. Unknown pairs are a no-op.
func (i *Index) Unsubscribe(s *Session, sc event.Scope) bool {
	if s == nil || sc.IsZero() {
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.removeLocked(s, sc)
}

// DropSession detaches the session from every scope it holds in one pass.
// Returns the number of subscriptions removed. Idempotent.
func (i *Index) DropSession(s *Session) int {
	if s == nil {
		return 0
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	scopes, ok := i.reverse[s]
	if !ok {
		return 0
	}

	removed := 0
	for sc := range scopes {
		fwd := i.forward(sc)
		set, ok := fwd[sc.ID]
		if !ok {
			// Reverse claims a subscription the forward map lost.
			// Log loudly and keep going: the detach must finish.
			i.logger.Error("subscription index out of sync, repairing",
				"session_id", s.GetID(), "scope", sc.String(), "missing", "forward")
			continue
		}
		if _, member := set[s]; !member {
			i.logger.Error("subscription index out of sync, repairing",
				"session_id", s.GetID(), "scope", sc.String(), "missing", "forward")
			continue
		}
		delete(set, s)
		if len(set) == 0 {
			delete(fwd, sc.ID)
		}
		removed++
	}
	delete(i.reverse, s)
	return removed
}

// SubscribersOf returns a point-in-time snapshot of the scope's sessions.
// Callers iterate the copy freely while subscriptions keep mutating.
func (i *Index) SubscribersOf(sc event.Scope) []*Session {
	i.mu.RLock()
	defer i.mu.RUnlock()

	set, ok := i.forward(sc)[sc.ID]
	if !ok || len(set) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// ScopesOf returns a copy of the session's current subscriptions.
func (i *Index) ScopesOf(s *Session) []event.Scope {
	i.mu.RLock()
	defer i.mu.RUnlock()

	set, ok := i.reverse[s]
	if !ok || len(set) == 0 {
		return nil
	}
	out := make([]event.Scope, 0, len(set))
	for sc := range set {
		out = append(out, sc)
	}
	return out
}

// Counts reports active topic and subscriber numbers for stats.
func (i *Index) Counts() (guilds, channels, sessions int) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.guilds), len(i.channels), len(i.reverse)
}

func (i *Index) reverseAdd(s *Session, sc event.Scope) {
	set, ok := i.reverse[s]
	if !ok {
		set = make(map[event.Scope]struct{})
		i.reverse[s] = set
	}
	set[sc] = struct{}{}
}

// removeLocked deletes one pair and heals any one-sided entry it finds.
func (i *Index) removeLocked(s *Session, sc event.Scope) bool {
	fwd := i.forward(sc)
	set, inForward := fwd[sc.ID]
	var member bool
	if inForward {
		_, member = set[s]
	}
	_, inReverse := i.reverse[s][sc]

	if member != inReverse {
		i.logger.Error("subscription index out of sync, repairing",
			"session_id", s.GetID(), "scope", sc.String(),
			"forward", member, "reverse", inReverse)
	}

	if member {
		delete(set, s)
		if len(set) == 0 {
			delete(fwd, sc.ID)
		}
	}
	if inReverse {
		delete(i.reverse[s], sc)
		if len(i.reverse[s]) == 0 {
			delete(i.reverse, s)
		}
	}
	return member || inReverse
}
