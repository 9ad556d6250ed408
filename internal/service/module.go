package service

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/guildview/panel-service/config"
	"github.com/guildview/panel-service/internal/domain/model"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			NewDeliveryService,
			fx.As(new(Deliverer)),
		),
		fx.Annotate(
			NewHistoryService,
			fx.As(new(Historian)),
		),
		fx.Annotate(
			func(cfg *config.Config, logger *slog.Logger) *AuthService {
				tokens := make(map[string]model.Identity, len(cfg.Auth.Tokens))
				for _, rule := range cfg.Auth.Tokens {
					tokens[rule.Token] = model.Identity{
						UserID: rule.User,
						Name:   rule.Name,
						Grants: model.Grants{
							Admin:    rule.Admin,
							Guilds:   rule.Guilds,
							Channels: rule.Channels,
						},
					}
				}
				return NewAuthService(cfg.Auth.AllowAnonymous, tokens, logger)
			},
			fx.As(new(Auther)),
		),
	),

	// [DECORATION_LAYER] Intercept Historian to add cross-cutting concerns
	fx.Decorate(func(orig Historian, logger *slog.Logger) Historian {
		return &HistorianMiddleware{
			Next:   orig,
			Logger: logger,
		}
	}),
)
