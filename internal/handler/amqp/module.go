package amqp

import (
	"go.uber.org/fx"
)

// [CLEAN_INJECTION]
var Module = fx.Module("announce",
	fx.Provide(NewIngest),
	fx.Invoke(func(lc fx.Lifecycle, i *Ingest) {
		// [LIFECYCLE]
		lc.Append(fx.Hook{
			OnStart: i.Start,
			OnStop:  i.Stop,
		})
	}),
)
