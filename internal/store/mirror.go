package store

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/guildview/panel-service/internal/domain/model"
)

// Mirror is the in-memory projection of the platform state this node has
// seen: guilds, channels, member rosters and a bounded recent-message
// timeline per channel. The gateway adapter is the only writer; the history
// and admin APIs are the readers.
//
// [OWNERSHIP]
// The mirror owns every value it stores. Writers hand over fresh structs,
// readers get copies, so nothing escapes the lock.
type Mirror struct {
	mu       sync.RWMutex
	guilds   map[string]*model.Guild
	channels map[string]*model.Channel
	byGuild  map[string]map[string]struct{}
	members  map[string]map[string]*model.Member
	lines    map[string]*timeline
	lineSize int
	logger   *slog.Logger
}

func NewMirror(lineSize int, logger *slog.Logger) *Mirror {
	if lineSize <= 0 {
		lineSize = 512
	}
	return &Mirror{
		guilds:   make(map[string]*model.Guild),
		channels: make(map[string]*model.Channel),
		byGuild:  make(map[string]map[string]struct{}),
		members:  make(map[string]map[string]*model.Member),
		lines:    make(map[string]*timeline),
		lineSize: lineSize,
		logger:   logger,
	}
}

// ------------------- WRITE SIDE (GATEWAY ADAPTER) ----------

func (m *Mirror) PutGuild(g *model.Guild) {
	if g == nil || g.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guilds[g.ID] = g
	if _, ok := m.byGuild[g.ID]; !ok {
		m.byGuild[g.ID] = make(map[string]struct{})
	}
}

// DropGuild removes the guild and cascades to its channels, members and
// timelines in one sweep.
func (m *Mirror) DropGuild(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.guilds, guildID)
	delete(m.members, guildID)
	for channelID := range m.byGuild[guildID] {
		delete(m.channels, channelID)
		delete(m.lines, channelID)
	}
	delete(m.byGuild, guildID)
}

func (m *Mirror) PutChannel(c *model.Channel) {
	if c == nil || c.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.channels[c.ID]; ok && prev.GuildID != c.GuildID {
		if set, ok := m.byGuild[prev.GuildID]; ok {
			delete(set, c.ID)
		}
	}
	m.channels[c.ID] = c
	set, ok := m.byGuild[c.GuildID]
	if !ok {
		set = make(map[string]struct{})
		m.byGuild[c.GuildID] = set
	}
	set[c.ID] = struct{}{}
}

func (m *Mirror) DropChannel(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.channels[channelID]; ok {
		if set, ok := m.byGuild[c.GuildID]; ok {
			delete(set, channelID)
		}
	}
	delete(m.channels, channelID)
	delete(m.lines, channelID)
}

func (m *Mirror) PutMember(mb *model.Member) {
	if mb == nil || mb.GuildID == "" || mb.User.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	roster, ok := m.members[mb.GuildID]
	if !ok {
		roster = make(map[string]*model.Member)
		m.members[mb.GuildID] = roster
	}
	// Presence is owned by SetPresence; keep the last known one on re-put.
	if prev, ok := roster[mb.User.ID]; ok && mb.Presence == "" {
		mb.Presence = prev.Presence
	}
	roster[mb.User.ID] = mb
}

func (m *Mirror) DropMember(guildID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if roster, ok := m.members[guildID]; ok {
		delete(roster, userID)
	}
}

// SetPresence updates a known member's availability. Presence for users that
// are not in the roster yet is dropped: a status without a member is noise.
func (m *Mirror) SetPresence(guildID, userID string, status model.PresenceStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mb, ok := m.members[guildID][userID]; ok {
		mb.Presence = status
		return true
	}
	m.logger.Debug("presence for unknown member dropped", "guild_id", guildID, "user_id", userID)
	return false
}

func (m *Mirror) AddMessage(msg *model.Message) {
	if msg == nil || msg.ID == "" || msg.ChannelID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	line, ok := m.lines[msg.ChannelID]
	if !ok {
		line = newTimeline(m.lineSize)
		m.lines[msg.ChannelID] = line
	}
	line.add(msg)
}

// EditMessage patches content in place. Edits of messages older than the
// timeline window report false; the archive still gets them via upsert.
func (m *Mirror) EditMessage(channelID, messageID, content string, editedAt time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if line, ok := m.lines[channelID]; ok {
		return line.edit(messageID, content, editedAt)
	}
	return false
}

func (m *Mirror) DropMessage(channelID, messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if line, ok := m.lines[channelID]; ok {
		return line.remove(messageID)
	}
	return false
}

// ------------------- READ SIDE (HISTORY / ADMIN) -----------

func (m *Mirror) Guild(guildID string) (*model.Guild, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.guilds[guildID]; ok {
		cp := *g
		return &cp, true
	}
	return nil, false
}

func (m *Mirror) Guilds() []*model.Guild {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Guild, 0, len(m.guilds))
	for _, g := range m.guilds {
		cp := *g
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *model.Guild) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (m *Mirror) Channel(channelID string) (*model.Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.channels[channelID]; ok {
		cp := *c
		return &cp, true
	}
	return nil, false
}

// Channels lists a guild's channels in panel order: position, then ID.
func (m *Mirror) Channels(guildID string) []*model.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.byGuild[guildID]
	out := make([]*model.Channel, 0, len(set))
	for channelID := range set {
		if c, ok := m.channels[channelID]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.Channel) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (m *Mirror) Members(guildID string) []*model.Member {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roster := m.members[guildID]
	out := make([]*model.Member, 0, len(roster))
	for _, mb := range roster {
		cp := *mb
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *model.Member) int {
		return strings.Compare(strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName()))
	})
	return out
}

func (m *Mirror) Member(guildID, userID string) (*model.Member, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mb, ok := m.members[guildID][userID]; ok {
		cp := *mb
		return &cp, true
	}
	return nil, false
}

// Messages returns the newest-first slice of the channel timeline bounded
// by the query's Before time and Limit.
func (m *Mirror) Messages(q model.MessageQuery) []*model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	line, ok := m.lines[q.ChannelID]
	if !ok {
		return nil
	}
	return line.newestFirst(q.Before, q.Limit)
}

// Search scans timelines for a case-insensitive substring. The guild filter
// narrows the scan to that guild's channels; a channel filter wins over it.
func (m *Mirror) Search(q model.SearchQuery) []*model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(q.Text)
	if needle == "" {
		return nil
	}

	var channelIDs []string
	switch {
	case q.ChannelID != "":
		channelIDs = []string{q.ChannelID}
	case q.GuildID != "":
		for id := range m.byGuild[q.GuildID] {
			channelIDs = append(channelIDs, id)
		}
	default:
		for id := range m.lines {
			channelIDs = append(channelIDs, id)
		}
	}

	var hits []*model.Message
	for _, id := range channelIDs {
		if line, ok := m.lines[id]; ok {
			line.match(needle, &hits)
		}
	}
	slices.SortFunc(hits, func(a, b *model.Message) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits
}

func (m *Mirror) Stats() model.MirrorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, messages := 0, 0
	for _, roster := range m.members {
		members += len(roster)
	}
	for _, line := range m.lines {
		messages += line.len()
	}
	return model.MirrorStats{
		Guilds:   len(m.guilds),
		Channels: len(m.channels),
		Members:  members,
		Messages: messages,
	}
}
