package api

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	httpserver "github.com/guildview/panel-service/infra/server/http"
	"github.com/guildview/panel-service/internal/service"
)

var Module = fx.Module("panel-api",
	fx.Provide(
		NewAPIHandler,
	),
	fx.Invoke(RegisterAPIRoutes),
)

func RegisterAPIRoutes(
	server *httpserver.Server,
	handler *APIHandler,
	auther service.Auther,
) {
	server.Mux.Route("/api/v1", func(r chi.Router) {
		r.Use(httpserver.Authenticate(auther))

		r.Get("/guilds", handler.ListGuilds)
		r.Get("/guilds/{guildID}", handler.GetGuild)
		r.Get("/guilds/{guildID}/channels", handler.ListChannels)
		r.Get("/guilds/{guildID}/members", handler.ListMembers)
		r.Get("/guilds/{guildID}/overview", handler.GetOverview)
		r.Get("/channels/{channelID}/messages", handler.ListMessages)
		r.Get("/search", handler.Search)

		r.Route("/admin", func(r chi.Router) {
			r.Use(httpserver.RequireAdmin)
			r.Get("/stats", handler.GetStats)
		})
	})
}
