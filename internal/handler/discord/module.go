package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"gateway",

	fx.Provide(NewSession),
	fx.Provide(NewAdapter),

	// [LIFECYCLE] The gateway opens after the hub and mirror exist and is
	// closed first on shutdown, so no payload arrives into a dying relay.
	fx.Invoke(func(lc fx.Lifecycle, dg *discordgo.Session, adapter *Adapter, logger *slog.Logger) {
		if dg == nil {
			logger.Warn("platform token not configured, upstream feed disabled")
			return
		}
		adapter.Bind(dg)

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return dg.Open()
			},
			OnStop: func(context.Context) error {
				return dg.Close()
			},
		})
	}),
)
