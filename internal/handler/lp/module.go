package lp

import (
	"go.uber.org/fx"

	httpserver "github.com/guildview/panel-service/infra/server/http"
	"github.com/guildview/panel-service/internal/service"
)

var Module = fx.Module("delivery-lp",
	fx.Provide(
		NewLPHandler,
	),
	fx.Invoke(RegisterLPRoutes),
)

func RegisterLPRoutes(
	server *httpserver.Server,
	handler *LPHandler,
	auther service.Auther,
) {
	server.Mux.With(httpserver.Authenticate(auther)).Get("/poll", handler.Poll)
}
