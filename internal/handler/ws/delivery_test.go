package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/guildview/panel-service/config"
	httpserver "github.com/guildview/panel-service/infra/server/http"
	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/model"
	"github.com/guildview/panel-service/internal/domain/registry"
	"github.com/guildview/panel-service/internal/handler/marshaller"
	"github.com/guildview/panel-service/internal/service"
	"github.com/guildview/panel-service/internal/store"
	"github.com/guildview/panel-service/internal/translator"
)

type wsFixture struct {
	srv *httptest.Server
	hub *registry.Hub
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{}
	cfg.Relay.PingInterval = 45 * time.Second
	cfg.Relay.WriteTimeout = 5 * time.Second
	cfg.Relay.ControlRate = 100
	cfg.Relay.ControlBurst = 100

	hub := registry.NewHub(logger, registry.WithSweepInterval(time.Hour))
	mirror := store.NewMirror(64, logger)
	deliverer := service.NewDeliveryService(hub, mirror, logger)
	auther := service.NewAuthService(false, map[string]model.Identity{
		"tok-e2e": {UserID: "u-ops", Name: "Ops", Grants: model.Grants{Admin: true}},
	}, logger)

	mux := chi.NewRouter()
	handler := NewWSHandler(logger, deliverer, cfg)
	mux.With(httpserver.Authenticate(auther)).Get("/ws", handler.ServeHTTP)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})

	return &wsFixture{srv: srv, hub: hub}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=tok-e2e"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) marshaller.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame marshaller.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected silence, got frame %s", raw)
	}
	if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

func subscribe(t *testing.T, conn *websocket.Conn, body string) marshaller.Frame {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(body)); err != nil {
		t.Fatalf("write command: %v", err)
	}
	return readFrame(t, conn)
}

func TestHandshakeLeadsWithReady(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)

	ready := readFrame(t, conn)
	if ready.Type != event.KindReady {
		t.Fatalf("first frame = %q, want %q", ready.Type, event.KindReady)
	}
	if ready.Data["session_id"] == "" || ready.Data["user_id"] != "u-ops" {
		t.Errorf("ready payload = %v", ready.Data)
	}
}

func TestRejectsBadToken(t *testing.T) {
	f := newWSFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=tok-wrong"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("dial succeeded with a bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("handshake response = %+v, want 401", resp)
	}
}

// The central fan-out scenario: a channel rename reaches the session
// subscribed to that channel as a field sub-event followed by the coarse
// update, and an unrelated session hears nothing.
func TestChannelRenameReachesOnlySubscribers(t *testing.T) {
	f := newWSFixture(t)

	watcher := f.dial(t)
	readFrame(t, watcher) // READY
	ack := subscribe(t, watcher, `{"op":"subscribe","channels":["c1"]}`)
	if ack.Type != event.KindSubscribeAck {
		t.Fatalf("ack = %q", ack.Type)
	}

	bystander := f.dial(t)
	readFrame(t, bystander) // READY
	subscribe(t, bystander, `{"op":"subscribe","channels":["c-other"]}`)

	// Upstream rename flows through the real translator.
	tr, ok := translator.Translate(&discordgo.ChannelUpdate{
		Channel: &discordgo.Channel{
			ID: "c1", GuildID: "g1", Name: "war-room", Type: discordgo.ChannelTypeGuildText,
		},
		BeforeUpdate: &discordgo.Channel{
			ID: "c1", GuildID: "g1", Name: "general", Type: discordgo.ChannelTypeGuildText,
		},
	})
	if !ok {
		t.Fatalf("translator rejected the fixture")
	}
	for _, ev := range tr.Events {
		f.hub.Publish(ev, tr.Scopes...)
	}

	first := readFrame(t, watcher)
	if first.Type != event.KindChannelUpdateName {
		t.Fatalf("first frame = %q, want %q", first.Type, event.KindChannelUpdateName)
	}
	if first.Data["old_name"] != "general" || first.Data["new_name"] != "war-room" {
		t.Errorf("rename payload = %v", first.Data)
	}

	second := readFrame(t, watcher)
	if second.Type != event.KindChannelUpdate {
		t.Fatalf("second frame = %q, want %q", second.Type, event.KindChannelUpdate)
	}

	expectSilence(t, bystander)
}

func TestMalformedCommandKeepsConnection(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)
	readFrame(t, conn) // READY

	errFrame := subscribe(t, conn, `{"op":"yodel"}`)
	if errFrame.Type != event.KindError {
		t.Fatalf("frame = %q, want %q", errFrame.Type, event.KindError)
	}
	if errFrame.Data["code"] != "BAD_COMMAND" {
		t.Errorf("error payload = %v", errFrame.Data)
	}

	// The connection survives and still answers pings.
	pong := subscribe(t, conn, `{"op":"ping"}`)
	if pong.Type != event.KindPong {
		t.Errorf("frame = %q, want %q", pong.Type, event.KindPong)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t)
	readFrame(t, conn) // READY

	subscribe(t, conn, `{"op":"subscribe","guilds":["g1"]}`)
	subscribe(t, conn, `{"op":"unsubscribe","guilds":["g1"]}`)

	f.hub.Publish(event.New(event.KindGuildUpdate, map[string]any{"guild_id": "g1"}),
		event.GuildScope("g1"))

	expectSilence(t, conn)
}
