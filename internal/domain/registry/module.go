package registry

import (
	"context"
	"log/slog"

	"github.com/guildview/panel-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(cfg *config.Config, logger *slog.Logger) *Hub {
			return NewHub(logger,
				WithQueueSize(cfg.Relay.SessionQueue),
				WithDrainTimeout(cfg.Relay.DrainTimeout),
				WithHandshakeTimeout(cfg.Relay.HandshakeTimeout),
				WithSweepInterval(cfg.Relay.SweepInterval),
			)
		},
		fx.Annotate(
			func(h *Hub) Hubber { return h },
			fx.As(new(Hubber)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Notify and detach every session
				return nil
			},
		})
	}),
)
