package discord

import (
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/model"
	"github.com/guildview/panel-service/internal/domain/registry"
	"github.com/guildview/panel-service/internal/store"
	"github.com/guildview/panel-service/internal/translator"
)

// presenceCacheSize bounds the last-seen-status cache. Presence is the
// noisiest stream the gateway sends; the cache only has to remember enough
// to tell a real status change from activity churn.
const presenceCacheSize = 4096

// Recorder is the archive's write side. The adapter hands it every message
// mutation; a disabled archive accepts and discards.
type Recorder interface {
	Record(msg *model.Message)
	Amend(channelID, messageID, content string, editedAt time.Time)
	Discard(channelID, messageID string)
}

// Exporter re-publishes panel events to the external feed. Implementations
// must not block the caller; the gateway goroutine is behind it.
type Exporter interface {
	Export(ev *event.Event)
}

// [GATEWAY_ADAPTER]
// Adapter is the single consumer of the upstream gateway feed. Each native
// payload is translated into panel events, published to the hub, then fed
// to the side paths: mirror apply, archive record, export. Side-path
// failures never reach the feed.
type Adapter struct {
	logger   *slog.Logger
	hub      registry.Hubber
	mirror   *store.Mirror
	archive  Recorder
	exporter Exporter

	// presence remembers the last status seen per guild member. The gateway
	// never replays old presence values, so the adapter has to.
	presence *lru.Cache[string, model.PresenceStatus]
}

func NewAdapter(logger *slog.Logger, hub registry.Hubber, mirror *store.Mirror, archive Recorder, exporter Exporter) *Adapter {
	presence, _ := lru.New[string, model.PresenceStatus](presenceCacheSize)
	return &Adapter{
		logger:   logger,
		hub:      hub,
		mirror:   mirror,
		archive:  archive,
		exporter: exporter,
		presence: presence,
	}
}

// Bind attaches one handler per native event kind the panel understands.
func (a *Adapter) Bind(dg *discordgo.Session) {
	dg.AddHandler(a.onReady)
	dg.AddHandler(a.onDisconnect)
	dg.AddHandler(a.onResumed)

	dg.AddHandler(a.onGuildCreate)
	dg.AddHandler(a.onGuildUpdate)
	dg.AddHandler(a.onGuildDelete)

	dg.AddHandler(a.onChannelCreate)
	dg.AddHandler(a.onChannelUpdate)
	dg.AddHandler(a.onChannelDelete)

	dg.AddHandler(a.onMessageCreate)
	dg.AddHandler(a.onMessageUpdate)
	dg.AddHandler(a.onMessageDelete)
	dg.AddHandler(a.onReactionAdd)
	dg.AddHandler(a.onReactionRemove)

	dg.AddHandler(a.onMemberAdd)
	dg.AddHandler(a.onMemberRemove)
	dg.AddHandler(a.onMemberUpdate)
	dg.AddHandler(a.onPresenceUpdate)
}

// ------------------- CONNECTION ----------------------------

func (a *Adapter) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	user := ""
	if r.User != nil {
		user = r.User.Username
	}
	a.logger.Info("gateway connected", "user", user, "guilds", len(r.Guilds))
}

func (a *Adapter) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	// discordgo reconnects on its own; the mirror keeps serving meanwhile.
	a.logger.Warn("gateway disconnected, reconnecting")
}

func (a *Adapter) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	a.logger.Info("gateway resumed")
}

// ------------------- GUILD --------------------------------

func (a *Adapter) onGuildCreate(_ *discordgo.Session, p *discordgo.GuildCreate) {
	defer a.recoverEvent("GUILD_CREATE")
	if p == nil || p.Guild == nil {
		return
	}
	a.relay(p)
	a.seedGuild(p.Guild)
}

func (a *Adapter) onGuildUpdate(_ *discordgo.Session, p *discordgo.GuildUpdate) {
	defer a.recoverEvent("GUILD_UPDATE")
	if p == nil || p.Guild == nil {
		return
	}
	// The gateway sends no old values for guilds; the mirror is the memory.
	before, _ := a.mirror.Guild(p.ID)
	a.relay(translator.GuildChange{Before: before, Guild: p.Guild})
	a.applyGuildUpdate(p.Guild, before)
}

func (a *Adapter) onGuildDelete(_ *discordgo.Session, p *discordgo.GuildDelete) {
	defer a.recoverEvent("GUILD_DELETE")
	if p == nil || p.Guild == nil {
		return
	}
	a.relay(p)
	if p.Unavailable {
		// Outage, not removal. The guild returns with a fresh GUILD_CREATE
		// and reseeds itself; dropping the mirror now would only blank the
		// panel for the duration.
		return
	}
	a.mirror.DropGuild(p.ID)
}

// ------------------- CHANNEL ------------------------------

func (a *Adapter) onChannelCreate(_ *discordgo.Session, p *discordgo.ChannelCreate) {
	defer a.recoverEvent("CHANNEL_CREATE")
	if p == nil || p.Channel == nil {
		return
	}
	a.relay(p)
	a.mirror.PutChannel(mapChannel(p.Channel))
}

func (a *Adapter) onChannelUpdate(_ *discordgo.Session, p *discordgo.ChannelUpdate) {
	defer a.recoverEvent("CHANNEL_UPDATE")
	if p == nil || p.Channel == nil {
		return
	}
	a.relay(p)
	a.mirror.PutChannel(mapChannel(p.Channel))
}

func (a *Adapter) onChannelDelete(_ *discordgo.Session, p *discordgo.ChannelDelete) {
	defer a.recoverEvent("CHANNEL_DELETE")
	if p == nil || p.Channel == nil {
		return
	}
	a.relay(p)
	a.mirror.DropChannel(p.ID)
}

// ------------------- MESSAGE ------------------------------

func (a *Adapter) onMessageCreate(_ *discordgo.Session, p *discordgo.MessageCreate) {
	defer a.recoverEvent("MESSAGE_CREATE")
	if p == nil || p.Message == nil {
		return
	}
	a.relay(p)
	msg := mapMessage(p.Message)
	a.mirror.AddMessage(msg)
	a.archive.Record(msg)
}

func (a *Adapter) onMessageUpdate(_ *discordgo.Session, p *discordgo.MessageUpdate) {
	defer a.recoverEvent("MESSAGE_UPDATE")
	if p == nil || p.Message == nil {
		return
	}
	a.relay(p)

	editedAt := time.Now()
	if p.EditedTimestamp != nil {
		editedAt = *p.EditedTimestamp
	}
	a.mirror.EditMessage(p.ChannelID, p.ID, p.Content, editedAt)
	a.archive.Amend(p.ChannelID, p.ID, p.Content, editedAt)
}

func (a *Adapter) onMessageDelete(_ *discordgo.Session, p *discordgo.MessageDelete) {
	defer a.recoverEvent("MESSAGE_DELETE")
	if p == nil || p.Message == nil {
		return
	}
	a.relay(p)
	a.mirror.DropMessage(p.ChannelID, p.ID)
	a.archive.Discard(p.ChannelID, p.ID)
}

func (a *Adapter) onReactionAdd(_ *discordgo.Session, p *discordgo.MessageReactionAdd) {
	defer a.recoverEvent("MESSAGE_REACTION_ADD")
	if p == nil {
		return
	}
	// Reactions are relay-only: not mirrored, not archived.
	a.relay(p)
}

func (a *Adapter) onReactionRemove(_ *discordgo.Session, p *discordgo.MessageReactionRemove) {
	defer a.recoverEvent("MESSAGE_REACTION_REMOVE")
	if p == nil {
		return
	}
	a.relay(p)
}

// ------------------- MEMBER -------------------------------

func (a *Adapter) onMemberAdd(_ *discordgo.Session, p *discordgo.GuildMemberAdd) {
	defer a.recoverEvent("GUILD_MEMBER_ADD")
	if p == nil || p.Member == nil {
		return
	}
	a.relay(p)
	a.mirror.PutMember(mapMember(p.GuildID, p.Member))
}

func (a *Adapter) onMemberRemove(_ *discordgo.Session, p *discordgo.GuildMemberRemove) {
	defer a.recoverEvent("GUILD_MEMBER_REMOVE")
	if p == nil || p.Member == nil || p.User == nil {
		return
	}
	a.relay(p)
	a.mirror.DropMember(p.GuildID, p.User.ID)
	a.presence.Remove(presenceKey(p.GuildID, p.User.ID))
}

func (a *Adapter) onMemberUpdate(_ *discordgo.Session, p *discordgo.GuildMemberUpdate) {
	defer a.recoverEvent("GUILD_MEMBER_UPDATE")
	if p == nil || p.Member == nil {
		return
	}
	a.relay(p)
	a.mirror.PutMember(mapMember(p.GuildID, p.Member))
}

func (a *Adapter) onPresenceUpdate(_ *discordgo.Session, p *discordgo.PresenceUpdate) {
	defer a.recoverEvent("PRESENCE_UPDATE")
	if p == nil || p.User == nil || p.GuildID == "" {
		return
	}

	key := presenceKey(p.GuildID, p.User.ID)
	before, _ := a.presence.Get(key)
	status := mapPresence(p.Status)
	if before == status {
		// Activity-only change. The panel tracks availability, not games.
		return
	}
	a.presence.Add(key, status)

	a.relay(translator.PresenceChange{Before: before, Update: p})
	a.mirror.SetPresence(p.GuildID, p.User.ID, status)
}

// ------------------- PLUMBING -----------------------------

// relay pushes one native payload through translate, publish and export.
// [HOT_PATH] Runs on the gateway goroutine; nothing here may block.
func (a *Adapter) relay(native any) {
	tr, ok := translator.Translate(native)
	if !ok {
		return
	}
	for _, ev := range tr.Events {
		delivered := a.hub.Publish(ev, tr.Scopes...)
		a.exporter.Export(ev)
		a.logger.Debug("event relayed", "kind", ev.GetKind(), "delivered", delivered)
	}
}

// seedGuild loads the full payload the gateway ships on join: the guild row,
// every channel, the member roster and current presences.
func (a *Adapter) seedGuild(g *discordgo.Guild) {
	a.mirror.PutGuild(mapGuild(g))

	for _, c := range g.Channels {
		ch := mapChannel(c)
		if ch.GuildID == "" {
			// Join payloads omit guild_id on nested channels.
			ch.GuildID = g.ID
		}
		a.mirror.PutChannel(ch)
	}
	for _, m := range g.Members {
		a.mirror.PutMember(mapMember(g.ID, m))
	}
	for _, pr := range g.Presences {
		if pr.User == nil {
			continue
		}
		status := mapPresence(pr.Status)
		a.presence.Add(presenceKey(g.ID, pr.User.ID), status)
		a.mirror.SetPresence(g.ID, pr.User.ID, status)
	}
}

// applyGuildUpdate patches the mirrored guild. Update payloads routinely
// omit member_count and joined_at, so the previous values survive.
func (a *Adapter) applyGuildUpdate(g *discordgo.Guild, before *model.Guild) {
	next := mapGuild(g)
	if before != nil {
		if next.MemberCount == 0 {
			next.MemberCount = before.MemberCount
		}
		if next.JoinedAt.IsZero() {
			next.JoinedAt = before.JoinedAt
		}
	}
	a.mirror.PutGuild(next)
}

// recoverEvent keeps one poisoned payload from taking the whole feed down.
// The gateway connection survives; only the current event is lost.
func (a *Adapter) recoverEvent(kind string) {
	if r := recover(); r != nil {
		a.logger.Error("gateway handler panicked", "native_kind", kind, "panic", r)
	}
}

func presenceKey(guildID, userID string) string {
	return guildID + ":" + userID
}
