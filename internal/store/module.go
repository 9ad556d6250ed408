package store

import (
	"log/slog"

	"github.com/guildview/panel-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("store",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) *Mirror {
			return NewMirror(cfg.Store.MessageWindow, logger)
		},
	),
)
