package httpserver

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"http-server",

	fx.Provide(New),

	// [LIFECYCLE] The listener opens after every route is mounted and is the
	// last relay piece to stop, so farewell frames still reach clients over
	// live sockets.
	fx.Invoke(func(lc fx.Lifecycle, srv *Server) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return srv.Start(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return srv.Stop(ctx)
			},
		})
	}),
)
