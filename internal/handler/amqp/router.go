package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/guildview/panel-service/config"
	"github.com/guildview/panel-service/internal/adapter/pubsub"
	"github.com/guildview/panel-service/internal/domain/registry"
)

const (
	// ------------------- EXCHANGE (SOURCE) ---------------------
	OpsExchange = "guildview.ops"

	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicAnnounceV1 = "panel.announce.v1"

	// ------------------- POISON PARKING ------------------------
	AnnouncePoisonTopic = "panel.announce.v1.poison"
)

const (
	// Ops traffic is tiny; the throttle only guards against a
	// runaway publisher flooding every dashboard.
	announceThrottle = 30
	handlerTimeout   = 30 * time.Second
)

// Ingest consumes operator announcements from the ops exchange and
// relays them to connected panel sessions. Deploy tooling and incident
// bots publish; every open dashboard hears about it within a frame.
type Ingest struct {
	cfg      config.AnnounceConfig
	logger   *slog.Logger
	wmLogger watermill.LoggerAdapter
	hub      registry.Hubber

	router *message.Router
	poison message.Publisher
}

func NewIngest(cfg *config.Config, logger *slog.Logger, wmLogger watermill.LoggerAdapter, hub registry.Hubber) *Ingest {
	return &Ingest{cfg: cfg.Announce, logger: logger, wmLogger: wmLogger, hub: hub}
}

// Start dials the broker, wires the pipeline and runs the router. As
// with the other optional integrations, a dead broker fails startup.
func (i *Ingest) Start(ctx context.Context) error {
	if !i.cfg.Enabled {
		return nil
	}

	// One durable named queue: the panel is a single-instance relay,
	// so there is no work-sharing across consumers to worry about.
	sub, err := pubsub.NewSubscriber(i.cfg.URL, OpsExchange, i.cfg.Queue, i.wmLogger)
	if err != nil {
		return fmt.Errorf("open announce subscriber: %w", err)
	}
	poison, err := pubsub.NewPublisher(i.cfg.URL, OpsExchange, i.wmLogger)
	if err != nil {
		return fmt.Errorf("open poison publisher: %w", err)
	}
	i.poison = poison

	router, err := message.NewRouter(message.RouterConfig{}, i.wmLogger)
	if err != nil {
		return fmt.Errorf("build announce router: %w", err)
	}
	if err := i.registerHandlers(router, sub); err != nil {
		return err
	}
	i.router = router

	// The router outlives the start call; Stop closes it.
	go func() {
		if err := router.Run(context.Background()); err != nil {
			i.logger.Error("announce router stopped", "err", err)
		}
	}()

	select {
	case <-router.Running():
	case <-ctx.Done():
		return fmt.Errorf("announce router did not start: %w", ctx.Err())
	}

	i.logger.Info("ANNOUNCE_PIPELINE_READY", "queue", i.cfg.Queue)
	return nil
}

// [REGISTRATION_PIPELINE]
func (i *Ingest) registerHandlers(router *message.Router, sub message.Subscriber) error {
	poisonHook, err := middleware.PoisonQueue(i.poison, AnnouncePoisonTopic)
	if err != nil {
		return fmt.Errorf("build poison queue: %w", err)
	}

	// Outermost first. The poison hook wraps the retry loop, so a frame
	// parks only after every retry is spent; an error escaping past it
	// means the park itself failed.
	router.AddNoPublisherHandler("ON_ANNOUNCE", TopicAnnounceV1, sub, Bind(i, i.OnAnnounceV1)).AddMiddleware(
		TraceIDMiddleware,
		LoggingMiddleware(i.logger),
		poisonHook,
		NewRetryMiddleware().Middleware,
		middleware.NewThrottle(announceThrottle, time.Second).Middleware,
		middleware.Timeout(handlerTimeout),
	)
	return nil
}

func (i *Ingest) Stop(ctx context.Context) error {
	if i.router == nil {
		return nil
	}
	err := i.router.Close()
	if i.poison != nil {
		if cerr := i.poison.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
