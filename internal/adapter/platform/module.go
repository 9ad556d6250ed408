package platform

import (
	"go.uber.org/fx"

	"github.com/guildview/panel-service/internal/service"
)

// [CLEAN_INJECTION]
var Module = fx.Module("platform",
	fx.Provide(
		NewFetcher,
		func(f *Fetcher) service.Backfiller { return f },
	),
)
