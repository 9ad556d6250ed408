package discord

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/model"
	"github.com/guildview/panel-service/internal/domain/registry"
	"github.com/guildview/panel-service/internal/store"
)

type fakeRecorder struct {
	recorded  []*model.Message
	amended   []string
	discarded []string
}

func (f *fakeRecorder) Record(msg *model.Message) { f.recorded = append(f.recorded, msg) }
func (f *fakeRecorder) Amend(_, messageID, _ string, _ time.Time) {
	f.amended = append(f.amended, messageID)
}
func (f *fakeRecorder) Discard(_, messageID string) {
	f.discarded = append(f.discarded, messageID)
}

type fakeExporter struct {
	exported []*event.Event
}

func (f *fakeExporter) Export(ev *event.Event) { f.exported = append(f.exported, ev) }

type adapterFixture struct {
	adapter  *Adapter
	hub      *registry.Hub
	mirror   *store.Mirror
	recorder *fakeRecorder
	exporter *fakeExporter
}

func newAdapterFixture(t *testing.T) *adapterFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := registry.NewHub(logger, registry.WithSweepInterval(time.Hour))
	t.Cleanup(hub.Shutdown)

	rec := &fakeRecorder{}
	exp := &fakeExporter{}
	mirror := store.NewMirror(64, logger)
	return &adapterFixture{
		adapter:  NewAdapter(logger, hub, mirror, rec, exp),
		hub:      hub,
		mirror:   mirror,
		recorder: rec,
		exporter: exp,
	}
}

// watch opens an active session subscribed to the scope. Handlers publish
// synchronously, so queued frames are visible as soon as a handler returns.
func (f *adapterFixture) watch(sc event.Scope) *registry.Session {
	s := f.hub.Open(model.Identity{UserID: "watcher"}, registry.SessionMetadata{Transport: "test"})
	s.Activate()
	f.hub.Subscribe(s, sc)
	return s
}

func recvKind(t *testing.T, s *registry.Session) string {
	t.Helper()
	select {
	case ev := <-s.Recv():
		return ev.GetKind()
	default:
		t.Fatal("no event queued")
		return ""
	}
}

func joinPayload() *discordgo.GuildCreate {
	return &discordgo.GuildCreate{Guild: &discordgo.Guild{
		ID: "g1", Name: "Ops", OwnerID: "u0", MemberCount: 42,
		JoinedAt: time.Now(),
		Channels: []*discordgo.Channel{
			// Join payloads omit guild_id on nested channels.
			{ID: "c1", Name: "general", Type: discordgo.ChannelTypeGuildText, Position: 1},
			{ID: "c2", GuildID: "g1", Name: "briefing", Type: discordgo.ChannelTypeGuildVoice, Position: 2},
		},
		Members: []*discordgo.Member{
			{User: &discordgo.User{ID: "u1", Username: "ana"}},
			{User: &discordgo.User{ID: "u2", Username: "bob"}, Nick: "B"},
		},
		Presences: []*discordgo.Presence{
			{User: &discordgo.User{ID: "u1"}, Status: discordgo.StatusIdle},
		},
	}}
}

func TestGuildCreateSeedsMirror(t *testing.T) {
	f := newAdapterFixture(t)

	f.adapter.onGuildCreate(nil, joinPayload())

	g, ok := f.mirror.Guild("g1")
	if !ok || g.MemberCount != 42 {
		t.Fatalf("mirror guild = %+v, ok = %v", g, ok)
	}
	channels := f.mirror.Channels("g1")
	if len(channels) != 2 {
		t.Fatalf("channels = %d, want 2 (guild_id fixed up on nested payloads)", len(channels))
	}
	if channels[0].GuildID != "g1" {
		t.Errorf("channel guild_id = %q, want g1", channels[0].GuildID)
	}
	members := f.mirror.Members("g1")
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	mb, _ := f.mirror.Member("g1", "u1")
	if mb.Presence != model.StatusIdle {
		t.Errorf("seeded presence = %q, want idle", mb.Presence)
	}
}

func TestGuildUpdateKeepsCountsAndEmitsRename(t *testing.T) {
	f := newAdapterFixture(t)
	f.adapter.onGuildCreate(nil, joinPayload())
	watcher := f.watch(event.GuildScope("g1"))

	// Update payloads carry neither member_count nor joined_at.
	f.adapter.onGuildUpdate(nil, &discordgo.GuildUpdate{Guild: &discordgo.Guild{
		ID: "g1", Name: "Ops HQ", OwnerID: "u0",
	}})

	if got := recvKind(t, watcher); got != event.KindGuildUpdateName {
		t.Errorf("first frame = %q, want %q", got, event.KindGuildUpdateName)
	}
	if got := recvKind(t, watcher); got != event.KindGuildUpdate {
		t.Errorf("second frame = %q, want %q", got, event.KindGuildUpdate)
	}

	g, _ := f.mirror.Guild("g1")
	if g.Name != "Ops HQ" {
		t.Errorf("name = %q, want renamed", g.Name)
	}
	if g.MemberCount != 42 || g.JoinedAt.IsZero() {
		t.Errorf("update clobbered counts: member_count = %d, joined_at zero = %v",
			g.MemberCount, g.JoinedAt.IsZero())
	}
}

func TestGuildDeleteOutageKeepsMirror(t *testing.T) {
	f := newAdapterFixture(t)
	f.adapter.onGuildCreate(nil, joinPayload())

	f.adapter.onGuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{
		ID: "g1", Unavailable: true,
	}})
	if _, ok := f.mirror.Guild("g1"); !ok {
		t.Fatal("outage dropped the mirrored guild")
	}

	f.adapter.onGuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g1"}})
	if _, ok := f.mirror.Guild("g1"); ok {
		t.Fatal("removal kept the mirrored guild")
	}
	if got := len(f.mirror.Channels("g1")); got != 0 {
		t.Errorf("channels after removal = %d, want 0", got)
	}
}

func TestMessageLifecycleFeedsSidePaths(t *testing.T) {
	f := newAdapterFixture(t)
	watcher := f.watch(event.ChannelScope("c1"))

	f.adapter.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m1", ChannelID: "c1", GuildID: "g1", Content: "hello",
		Timestamp: time.Now(), Author: &discordgo.User{ID: "u1", Username: "ana"},
	}})
	f.adapter.onMessageUpdate(nil, &discordgo.MessageUpdate{Message: &discordgo.Message{
		ID: "m1", ChannelID: "c1", GuildID: "g1", Content: "hello, edited",
	}})
	f.adapter.onMessageDelete(nil, &discordgo.MessageDelete{Message: &discordgo.Message{
		ID: "m1", ChannelID: "c1", GuildID: "g1",
	}})

	wantKinds := []string{event.KindMessageCreate, event.KindMessageUpdate, event.KindMessageDelete}
	for _, want := range wantKinds {
		if got := recvKind(t, watcher); got != want {
			t.Errorf("frame = %q, want %q", got, want)
		}
	}

	if len(f.recorder.recorded) != 1 || f.recorder.recorded[0].ID != "m1" {
		t.Errorf("archive recorded = %+v, want one m1", f.recorder.recorded)
	}
	if len(f.recorder.amended) != 1 || len(f.recorder.discarded) != 1 {
		t.Errorf("archive amends/discards = %d/%d, want 1/1",
			len(f.recorder.amended), len(f.recorder.discarded))
	}
	if len(f.exporter.exported) != 3 {
		t.Errorf("exported = %d events, want 3", len(f.exporter.exported))
	}
	if got := f.mirror.Messages(model.MessageQuery{ChannelID: "c1"}); len(got) != 0 {
		t.Errorf("timeline after delete = %d messages, want 0", len(got))
	}
}

func TestReactionIsRelayOnly(t *testing.T) {
	f := newAdapterFixture(t)
	watcher := f.watch(event.ChannelScope("c1"))

	f.adapter.onReactionAdd(nil, &discordgo.MessageReactionAdd{
		MessageReaction: &discordgo.MessageReaction{
			MessageID: "m1", ChannelID: "c1", GuildID: "g1", UserID: "u1",
			Emoji: discordgo.Emoji{Name: "👍"},
		},
	})

	if got := recvKind(t, watcher); got != event.KindReactionAdd {
		t.Errorf("frame = %q, want %q", got, event.KindReactionAdd)
	}
	if len(f.recorder.recorded) != 0 {
		t.Errorf("reaction reached the archive")
	}
}

func TestPresenceActivityNoiseSuppressed(t *testing.T) {
	f := newAdapterFixture(t)
	f.adapter.onGuildCreate(nil, joinPayload())
	watcher := f.watch(event.GuildScope("g1"))

	update := func(status discordgo.Status) *discordgo.PresenceUpdate {
		return &discordgo.PresenceUpdate{
			Presence: discordgo.Presence{User: &discordgo.User{ID: "u2"}, Status: status},
			GuildID:  "g1",
		}
	}

	f.adapter.onPresenceUpdate(nil, update(discordgo.StatusOnline))
	f.adapter.onPresenceUpdate(nil, update(discordgo.StatusOnline)) // activity churn
	f.adapter.onPresenceUpdate(nil, update(discordgo.StatusDoNotDisturb))

	if got := recvKind(t, watcher); got != event.KindPresenceUpdate {
		t.Fatalf("frame = %q, want %q", got, event.KindPresenceUpdate)
	}
	select {
	case ev := <-watcher.Recv():
		data := ev.GetData()
		if data["status"] != "dnd" || data["old_status"] != "online" {
			t.Errorf("second presence payload = %v", data)
		}
	default:
		t.Fatal("status change did not publish")
	}
	if watcher.Queued() != 0 {
		t.Errorf("queued = %d, repeated status leaked through", watcher.Queued())
	}

	mb, _ := f.mirror.Member("g1", "u2")
	if mb.Presence != model.StatusDND {
		t.Errorf("mirror presence = %q, want dnd", mb.Presence)
	}
}

func TestMemberRemoveForgetsPresence(t *testing.T) {
	f := newAdapterFixture(t)
	f.adapter.onGuildCreate(nil, joinPayload())

	f.adapter.onMemberRemove(nil, &discordgo.GuildMemberRemove{Member: &discordgo.Member{
		GuildID: "g1", User: &discordgo.User{ID: "u1", Username: "ana"},
	}})

	if _, ok := f.mirror.Member("g1", "u1"); ok {
		t.Fatal("member survived removal")
	}
	if _, ok := f.adapter.presence.Get(presenceKey("g1", "u1")); ok {
		t.Error("presence cache kept a removed member")
	}
}
