package ws

import (
	"go.uber.org/fx"

	httpserver "github.com/guildview/panel-service/infra/server/http"
	"github.com/guildview/panel-service/internal/service"
)

var Module = fx.Module("delivery-ws",
	fx.Provide(
		NewWSHandler,
	),
	fx.Invoke(RegisterWSRoutes),
)

func RegisterWSRoutes(
	server *httpserver.Server,
	handler *WSHandler,
	auther service.Auther,
) {
	server.Mux.With(httpserver.Authenticate(auther)).Get("/ws", handler.ServeHTTP)
}
