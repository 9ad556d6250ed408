package telemetry

import (
	"go.uber.org/fx"
)

// [CLEAN_INJECTION]
var Module = fx.Module("telemetry",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, t *Telemetry) {
		// [LIFECYCLE]
		// Providers come up first and go down last, so every other
		// component's spans and shutdown logs still reach the collector.
		lc.Append(fx.Hook{
			OnStart: t.Start,
			OnStop:  t.Stop,
		})
	}),
)
