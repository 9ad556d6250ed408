package pubsub

import (
	"go.uber.org/fx"

	"github.com/guildview/panel-service/internal/handler/discord"
)

// [CLEAN_INJECTION]
var Module = fx.Module("export",
	fx.Provide(
		NewFeed,
		func(f *Feed) discord.Exporter { return f },
	),
	fx.Invoke(func(lc fx.Lifecycle, f *Feed) {
		// [LIFECYCLE]
		// The broker connection opens before the gateway starts feeding
		// events and closes after the gateway stops, so nothing is shed
		// during an orderly shutdown.
		lc.Append(fx.Hook{
			OnStart: f.Start,
			OnStop:  f.Stop,
		})
	}),
)
