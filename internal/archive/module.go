package archive

import (
	"go.uber.org/fx"

	"github.com/guildview/panel-service/internal/handler/api"
	"github.com/guildview/panel-service/internal/handler/discord"
	"github.com/guildview/panel-service/internal/service"
)

var Module = fx.Module(
	"archive",

	fx.Provide(
		New,
		// One journal, three consumers: history reads, gateway writes, stats.
		func(j *Journal) service.Archive { return j },
		func(j *Journal) discord.Recorder { return j },
		func(j *Journal) api.ArchiveHealth { return j },
	),

	// [LIFECYCLE] Connected and consuming before the gateway starts
	// feeding, flushed and closed after it stops.
	fx.Invoke(func(lc fx.Lifecycle, j *Journal) {
		lc.Append(fx.Hook{
			OnStart: j.Start,
			OnStop:  j.Stop,
		})
	}),
)
