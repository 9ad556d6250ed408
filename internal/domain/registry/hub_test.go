package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/model"
)

func newTestHub() *Hub {
	return NewHub(testLogger(), WithQueueSize(8), WithSweepInterval(time.Hour))
}

func openActive(h *Hub, userID string) *Session {
	s := h.Open(model.Identity{UserID: userID}, SessionMetadata{Transport: "ws"})
	s.Activate()
	return s
}

func TestPublishReachesSubscribedScopes(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()

	guildSub := openActive(h, "u1")
	channelSub := openActive(h, "u2")
	h.Subscribe(guildSub, event.GuildScope("g1"))
	h.Subscribe(channelSub, event.ChannelScope("c1"))

	ev := event.New(event.KindMessageCreate, map[string]any{"id": "m1"})
	delivered := h.Publish(ev, event.GuildScope("g1"), event.ChannelScope("c1"))

	if delivered != 2 {
		t.Fatalf("Publish delivered = %d, want 2", delivered)
	}
	if guildSub.Queued() != 1 || channelSub.Queued() != 1 {
		t.Errorf("queues = (%d, %d), want (1, 1)", guildSub.Queued(), channelSub.Queued())
	}
}

func TestPublishDedupesOverlappingScopes(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()

	s := openActive(h, "u1")
	h.Subscribe(s, event.GuildScope("g1"))
	h.Subscribe(s, event.ChannelScope("c1"))

	ev := event.New(event.KindMessageCreate, map[string]any{"id": "m1"})
	delivered := h.Publish(ev, event.GuildScope("g1"), event.ChannelScope("c1"))

	if delivered != 1 {
		t.Errorf("Publish delivered = %d, want 1 (deduped)", delivered)
	}
	if s.Queued() != 1 {
		t.Errorf("Queued = %d, want exactly 1 copy", s.Queued())
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()

	ev := event.New(event.KindMessageCreate, nil)
	if delivered := h.Publish(ev, event.GuildScope("nowhere")); delivered != 0 {
		t.Errorf("Publish delivered = %d, want 0", delivered)
	}
}

func TestPublishSkipsOtherScopes(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()

	s := openActive(h, "u1")
	h.Subscribe(s, event.ChannelScope("c1"))

	ev := event.New(event.KindMessageCreate, nil)
	if delivered := h.Publish(ev, event.ChannelScope("c2")); delivered != 0 {
		t.Errorf("event leaked to a non-subscribed session: delivered = %d", delivered)
	}
	if s.Queued() != 0 {
		t.Errorf("Queued = %d, want 0", s.Queued())
	}
}

func TestOrderSurvivesConcurrentPublishes(t *testing.T) {
	h := NewHub(testLogger(), WithQueueSize(64), WithSweepInterval(time.Hour))
	defer h.Shutdown()

	watcher := openActive(h, "u1")
	h.Subscribe(watcher, event.ChannelScope("c1"))
	noise := openActive(h, "u2")
	h.Subscribe(noise, event.ChannelScope("c-noise"))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.Publish(event.New(event.KindMessageCreate, nil), event.ChannelScope("c-noise"))
				}
			}
		}()
	}

	sent := make([]*event.Event, 32)
	for i := range sent {
		sent[i] = event.New(event.KindMessageCreate, map[string]any{"seq": i})
		h.Publish(sent[i], event.ChannelScope("c1"))
	}
	close(stop)
	wg.Wait()

	for i, want := range sent {
		if got := <-watcher.Recv(); got != want {
			t.Fatalf("event %d out of order: got %q", i, got.GetID())
		}
	}
}

func TestDropDetachesAndIsIdempotent(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()

	s := openActive(h, "u1")
	h.Subscribe(s, event.GuildScope("g1"))

	h.Drop(s, "client_gone")
	h.Drop(s, "client_gone") // second drop must be harmless

	if got := s.CloseReason(); got != "client_gone" {
		t.Errorf("CloseReason = %q, want %q", got, "client_gone")
	}
	if delivered := h.Publish(event.New(event.KindMessageCreate, nil), event.GuildScope("g1")); delivered != 0 {
		t.Errorf("Publish after Drop delivered = %d, want 0", delivered)
	}
	if stats := h.Stats(); stats.Sessions != 0 {
		t.Errorf("Stats.Sessions after Drop = %d, want 0", stats.Sessions)
	}
}

func TestLateBroadcastAfterCloseIsNoop(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()

	s := openActive(h, "u1")
	h.Subscribe(s, event.GuildScope("g1"))

	// Simulate the race where the session closed but the registry entry is
	// still visible to an in-flight Publish.
	s.Close("client_gone")

	if delivered := h.Publish(event.New(event.KindMessageCreate, nil), event.GuildScope("g1")); delivered != 0 {
		t.Errorf("Publish to closing session delivered = %d, want 0", delivered)
	}
}

func TestBroadcastAllReachesUnsubscribedSessions(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()

	a := openActive(h, "u1")
	b := openActive(h, "u2")
	h.Subscribe(a, event.GuildScope("g1"))
	// b intentionally has no subscriptions.

	ev := event.New(event.KindAnnounce, map[string]any{"title": "maintenance"})
	if delivered := h.BroadcastAll(ev); delivered != 2 {
		t.Errorf("BroadcastAll delivered = %d, want 2", delivered)
	}
	if b.Queued() != 1 {
		t.Errorf("unsubscribed session Queued = %d, want 1", b.Queued())
	}
}

func TestShutdownClosesEverySession(t *testing.T) {
	h := newTestHub()

	a := openActive(h, "u1")
	b := openActive(h, "u2")
	h.Subscribe(a, event.GuildScope("g1"))

	h.Shutdown()

	for _, s := range []*Session{a, b} {
		select {
		case <-s.Done():
		default:
			t.Errorf("session %s not closed by Shutdown", s.GetID())
		}
		// Farewell frame queued before the close.
		if s.Queued() != 1 {
			t.Errorf("session %s Queued = %d, want 1 farewell frame", s.GetID(), s.Queued())
			continue
		}
		if got := <-s.Recv(); got.GetKind() != event.KindClosed {
			t.Errorf("farewell kind = %q, want %q", got.GetKind(), event.KindClosed)
		}
	}

	if stats := h.Stats(); stats.Sessions != 0 {
		t.Errorf("Stats.Sessions after Shutdown = %d, want 0", stats.Sessions)
	}
}

func TestStatsCountsTopics(t *testing.T) {
	h := newTestHub()
	defer h.Shutdown()

	a := openActive(h, "u1")
	b := openActive(h, "u2")
	h.Subscribe(a, event.GuildScope("g1"))
	h.Subscribe(a, event.ChannelScope("c1"))
	h.Subscribe(b, event.ChannelScope("c1"))

	stats := h.Stats()
	if stats.Sessions != 2 {
		t.Errorf("Stats.Sessions = %d, want 2", stats.Sessions)
	}
	if stats.GuildTopics != 1 {
		t.Errorf("Stats.GuildTopics = %d, want 1", stats.GuildTopics)
	}
	if stats.ChannelTopics != 1 {
		t.Errorf("Stats.ChannelTopics = %d, want 1", stats.ChannelTopics)
	}
}
