package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/guildview/panel-service/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuth(allowAnonymous bool) *AuthService {
	return NewAuthService(allowAnonymous, map[string]model.Identity{
		"tok-admin": {
			UserID: "u-admin",
			Name:   "Root",
			Grants: model.Grants{Admin: true},
		},
		"tok-scoped": {
			UserID: "u-scoped",
			Name:   "Scoped",
			Grants: model.Grants{Guilds: []string{"g1"}},
		},
	}, testLogger())
}

func TestAuthenticateKnownToken(t *testing.T) {
	a := newTestAuth(false)

	identity, err := a.Authenticate(context.Background(), "tok-scoped")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if identity.UserID != "u-scoped" {
		t.Errorf("UserID = %q, want u-scoped", identity.UserID)
	}
	if !identity.Grants.AllowsGuild("g1") || identity.Grants.AllowsGuild("g2") {
		t.Errorf("grants resolved wrong: %+v", identity.Grants)
	}
}

func TestAuthenticateUnknownToken(t *testing.T) {
	a := newTestAuth(false)

	_, err := a.Authenticate(context.Background(), "tok-forged")
	if !errors.Is(err, ErrTokenRejected) {
		t.Errorf("err = %v, want ErrTokenRejected", err)
	}
}

func TestAuthenticateEmptyToken(t *testing.T) {
	a := newTestAuth(false)
	if _, err := a.Authenticate(context.Background(), ""); !errors.Is(err, ErrTokenRejected) {
		t.Errorf("closed mode: err = %v, want ErrTokenRejected", err)
	}

	open := newTestAuth(true)
	identity, err := open.Authenticate(context.Background(), "")
	if err != nil {
		t.Fatalf("open mode: %v", err)
	}
	if identity.UserID != "anonymous" {
		t.Errorf("anonymous UserID = %q", identity.UserID)
	}
	if !identity.Grants.AllowsGuild("any-guild") {
		t.Errorf("anonymous identity cannot view guilds")
	}
	if identity.Grants.Admin {
		t.Errorf("anonymous identity must not be admin")
	}
}

func TestAuthenticateSecondLookupServedFromCache(t *testing.T) {
	a := newTestAuth(false)

	first, err := a.Authenticate(context.Background(), "tok-admin")
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	// Pull the entry out from under the cache; a hit must still resolve.
	delete(a.tokens, "tok-admin")

	second, err := a.Authenticate(context.Background(), "tok-admin")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.UserID != first.UserID {
		t.Errorf("cached identity = %+v, want %+v", second, first)
	}
}
