package cmd

import (
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/guildview/panel-service/config"
	httpserver "github.com/guildview/panel-service/infra/server/http"
	"github.com/guildview/panel-service/infra/telemetry"
	"github.com/guildview/panel-service/internal/adapter/platform"
	"github.com/guildview/panel-service/internal/adapter/pubsub"
	"github.com/guildview/panel-service/internal/archive"
	"github.com/guildview/panel-service/internal/domain/registry"
	amqphandler "github.com/guildview/panel-service/internal/handler/amqp"
	"github.com/guildview/panel-service/internal/handler/api"
	"github.com/guildview/panel-service/internal/handler/discord"
	"github.com/guildview/panel-service/internal/handler/lp"
	"github.com/guildview/panel-service/internal/handler/ws"
	"github.com/guildview/panel-service/internal/service"
	"github.com/guildview/panel-service/internal/store"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
		),
		fx.Supply(telemetry.BuildInfo{Version: version}),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),

		telemetry.Module,
		httpserver.Module,
		registry.Module,
		store.Module,
		service.Module,
		archive.Module,
		platform.Module,
		pubsub.Module,
		discord.Module,
		amqphandler.Module,
		ws.Module,
		lp.Module,
		api.Module,
	)
}
