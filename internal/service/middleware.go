package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/guildview/panel-service/internal/domain/model"
)

// HistorianMiddleware implements [DECORATOR_PATTERN] to add observability to
// the read path without touching business logic.
type HistorianMiddleware struct {
	Next   Historian
	Logger *slog.Logger
}

func (m *HistorianMiddleware) Guilds(ctx context.Context) []*model.Guild {
	return m.Next.Guilds(ctx)
}

func (m *HistorianMiddleware) Guild(ctx context.Context, id string) (*model.Guild, bool) {
	return m.Next.Guild(ctx, id)
}

func (m *HistorianMiddleware) Channels(ctx context.Context, guildID string) []*model.Channel {
	return m.Next.Channels(ctx, guildID)
}

func (m *HistorianMiddleware) Members(ctx context.Context, guildID string) []*model.Member {
	return m.Next.Members(ctx, guildID)
}

// Messages wraps the chained history read with execution timing.
func (m *HistorianMiddleware) Messages(ctx context.Context, q model.MessageQuery) ([]*model.Message, error) {
	start := time.Now()

	out, err := m.Next.Messages(ctx, q)

	// [OBSERVABILITY] The chain can span archive, mirror and platform; the
	// duration tells which reads are worth caching harder.
	duration := time.Since(start)

	if err != nil {
		m.Logger.Error("HISTORY_READ_FAILED",
			"err", err,
			"channel_id", q.ChannelID,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		m.Logger.Debug("HISTORY_READ_COMPLETED",
			"channel_id", q.ChannelID,
			"count", len(out),
			"duration_ms", duration.Milliseconds(),
		)
	}

	return out, err
}

// Search wraps text search, which is the slowest read the panel serves.
func (m *HistorianMiddleware) Search(ctx context.Context, q model.SearchQuery) ([]*model.Message, error) {
	start := time.Now()

	out, err := m.Next.Search(ctx, q)
	if err != nil {
		m.Logger.Warn("HISTORY_SEARCH_FAILED",
			"guild_id", q.GuildID,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return out, err
	}

	m.Logger.Debug("HISTORY_SEARCH_COMPLETED",
		"guild_id", q.GuildID,
		"hits", len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return out, err
}

func (m *HistorianMiddleware) Overview(ctx context.Context, guildID string) (*model.GuildOverview, error) {
	start := time.Now()

	out, err := m.Next.Overview(ctx, guildID)
	if err != nil {
		m.Logger.Warn("OVERVIEW_BUILD_FAILED",
			"guild_id", guildID,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return out, err
}
