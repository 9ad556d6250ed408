package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guildview/panel-service/config"
	httpserver "github.com/guildview/panel-service/infra/server/http"
	"github.com/guildview/panel-service/internal/domain/model"
	"github.com/guildview/panel-service/internal/domain/registry"
	"github.com/guildview/panel-service/internal/service"
	"github.com/guildview/panel-service/internal/store"
)

type noArchive struct{}

func (noArchive) Ready() bool { return false }
func (noArchive) Messages(context.Context, model.MessageQuery) ([]*model.Message, error) {
	return nil, nil
}
func (noArchive) Search(context.Context, model.SearchQuery) ([]*model.Message, error) {
	return nil, nil
}
func (noArchive) Stats() model.ArchiveStats { return model.ArchiveStats{} }

type noBackfill struct{}

func (noBackfill) Ready() bool { return false }
func (noBackfill) ChannelMessages(context.Context, string, time.Time, int) ([]*model.Message, error) {
	return nil, nil
}

type apiFixture struct {
	srv    *httptest.Server
	mirror *store.Mirror
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{}
	cfg.HTTP.Addr = ":0"

	hub := registry.NewHub(logger, registry.WithSweepInterval(time.Hour))
	mirror := store.NewMirror(64, logger)
	historian := service.NewHistoryService(mirror, noArchive{}, noBackfill{}, logger)
	auther := service.NewAuthService(false, map[string]model.Identity{
		"tok-admin":  {UserID: "u-ops", Grants: model.Grants{Admin: true}},
		"tok-scoped": {UserID: "u-view", Grants: model.Grants{Guilds: []string{"g1"}}},
	}, logger)

	server := httpserver.New(cfg, logger)
	RegisterAPIRoutes(server, NewAPIHandler(logger, historian, hub, mirror, noArchive{}), auther)

	srv := httptest.NewServer(server.Mux)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})

	return &apiFixture{srv: srv, mirror: mirror}
}

func (f *apiFixture) get(t *testing.T, path, token string) (*http.Response, []byte) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func TestListGuildsFiltersByGrant(t *testing.T) {
	f := newAPIFixture(t)
	f.mirror.PutGuild(&model.Guild{ID: "g1", Name: "alpha"})
	f.mirror.PutGuild(&model.Guild{ID: "g2", Name: "beta"})

	resp, body := f.get(t, "/api/v1/guilds", "tok-scoped")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var guilds []*model.Guild
	if err := json.Unmarshal(body, &guilds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(guilds) != 1 || guilds[0].ID != "g1" {
		t.Errorf("scoped view = %v, want [g1]", guilds)
	}

	_, body = f.get(t, "/api/v1/guilds", "tok-admin")
	if err := json.Unmarshal(body, &guilds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(guilds) != 2 {
		t.Errorf("admin view = %v, want both guilds", guilds)
	}
}

func TestGetGuildGrantBeforeExistence(t *testing.T) {
	f := newAPIFixture(t)
	f.mirror.PutGuild(&model.Guild{ID: "g2", Name: "private"})

	// Unauthorized caller gets 403 whether or not the guild exists.
	resp, _ := f.get(t, "/api/v1/guilds/g2", "tok-scoped")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("ungranted = %d, want 403", resp.StatusCode)
	}

	resp, _ = f.get(t, "/api/v1/guilds/g-ghost", "tok-admin")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown = %d, want 404", resp.StatusCode)
	}

	resp, _ = f.get(t, "/api/v1/guilds/g2", "tok-admin")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("granted = %d, want 200", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.get(t, "/api/v1/guilds", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", resp.StatusCode)
	}
}

func TestListMessagesQuery(t *testing.T) {
	f := newAPIFixture(t)
	f.mirror.PutChannel(&model.Channel{ID: "c1", GuildID: "g1", Name: "general"})
	base := time.Now()
	for i, id := range []string{"m1", "m2", "m3"} {
		f.mirror.AddMessage(&model.Message{
			ID: id, ChannelID: "c1", GuildID: "g1",
			Content: "hello", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	resp, body := f.get(t, "/api/v1/channels/c1/messages?limit=2", "tok-scoped")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var msgs []*model.Message
	if err := json.Unmarshal(body, &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m3" {
		t.Errorf("page = %v, want newest-first [m3 m2]", msgs)
	}

	resp, _ = f.get(t, "/api/v1/channels/c1/messages?before=not-a-number", "tok-scoped")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad before = %d, want 400", resp.StatusCode)
	}

	// c9 is unknown to the mirror: non-admin denied, admin may still read.
	resp, _ = f.get(t, "/api/v1/channels/c9/messages", "tok-scoped")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("unknown channel = %d, want 403", resp.StatusCode)
	}
	resp, _ = f.get(t, "/api/v1/channels/c9/messages", "tok-admin")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("admin unknown channel = %d, want 200", resp.StatusCode)
	}
}

func TestSearchValidation(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.get(t, "/api/v1/search?guild=g1", "tok-scoped")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", resp.StatusCode)
	}

	resp, _ = f.get(t, "/api/v1/search?q=deploy", "tok-scoped")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing scope = %d, want 400", resp.StatusCode)
	}

	resp, _ = f.get(t, "/api/v1/search?q=deploy&guild=g-private", "tok-scoped")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("ungranted guild = %d, want 403", resp.StatusCode)
	}

	resp, _ = f.get(t, "/api/v1/search?q=deploy&guild=g1", "tok-scoped")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("granted search = %d, want 200", resp.StatusCode)
	}
}

func TestAdminStats(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.get(t, "/api/v1/admin/stats", "tok-scoped")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("viewer = %d, want 403", resp.StatusCode)
	}

	resp, body := f.get(t, "/api/v1/admin/stats", "tok-admin")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin = %d, want 200", resp.StatusCode)
	}
	var report model.StatsReport
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Service != "guildview-panel" || report.Version != model.ServerVersion {
		t.Errorf("report head = %+v", report)
	}
}
