package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guildview/panel-service/internal/domain/model"
	"github.com/guildview/panel-service/internal/store"
)

// Interface guard
var _ Historian = (*HistoryService)(nil)

// Archive is the durable message store behind the panel, when one is
// configured. Ready reports whether reads may be attempted at all.
type Archive interface {
	Ready() bool
	Messages(ctx context.Context, q model.MessageQuery) ([]*model.Message, error)
	Search(ctx context.Context, q model.SearchQuery) ([]*model.Message, error)
}

// Backfiller fetches history straight from the chat platform when local
// stores run out. Implementations are expected to fail fast while the
// platform is struggling.
type Backfiller interface {
	Ready() bool
	ChannelMessages(ctx context.Context, channelID string, before time.Time, limit int) ([]*model.Message, error)
}

// Historian answers every read the frontend asks for: current structure from
// the mirror, message history from the archive with mirror and platform
// fallbacks.
type Historian interface {
	Guilds(ctx context.Context) []*model.Guild
	Guild(ctx context.Context, id string) (*model.Guild, bool)
	Channels(ctx context.Context, guildID string) []*model.Channel
	Members(ctx context.Context, guildID string) []*model.Member
	Messages(ctx context.Context, q model.MessageQuery) ([]*model.Message, error)
	Search(ctx context.Context, q model.SearchQuery) ([]*model.Message, error)
	Overview(ctx context.Context, guildID string) (*model.GuildOverview, error)
}

// ErrGuildUnknown is returned by Overview for ids the mirror has never seen.
var ErrGuildUnknown = fmt.Errorf("guild not tracked by this panel")

type HistoryService struct {
	mirror   *store.Mirror
	archive  Archive
	backfill Backfiller
	logger   *slog.Logger
}

func NewHistoryService(mirror *store.Mirror, archive Archive, backfill Backfiller, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		mirror:   mirror,
		archive:  archive,
		backfill: backfill,
		logger:   logger,
	}
}

func (s *HistoryService) Guilds(ctx context.Context) []*model.Guild {
	return s.mirror.Guilds()
}

func (s *HistoryService) Guild(ctx context.Context, id string) (*model.Guild, bool) {
	return s.mirror.Guild(id)
}

func (s *HistoryService) Channels(ctx context.Context, guildID string) []*model.Channel {
	return s.mirror.Channels(guildID)
}

func (s *HistoryService) Members(ctx context.Context, guildID string) []*model.Member {
	return s.mirror.Members(guildID)
}

// Messages walks the read chain. The archive, when configured, is the
// authoritative answer. Otherwise the in-memory window serves the page, and
// a short page with room left falls through to the platform API.
func (s *HistoryService) Messages(ctx context.Context, q model.MessageQuery) ([]*model.Message, error) {
	if s.archive.Ready() {
		out, err := s.archive.Messages(ctx, q)
		if err == nil {
			return out, nil
		}
		s.logger.Warn("archive read failed, serving mirror window",
			slog.String("channel_id", q.ChannelID),
			slog.Any("err", err),
		)
	}

	out := s.mirror.Messages(q)
	if q.Limit <= 0 || len(out) >= q.Limit || !s.backfill.Ready() {
		return out, nil
	}

	// The window ran dry before the page filled: ask the platform itself.
	deep, err := s.backfill.ChannelMessages(ctx, q.ChannelID, q.Before, q.Limit)
	if err != nil {
		s.logger.Warn("platform backfill unavailable, serving short page",
			slog.String("channel_id", q.ChannelID),
			slog.Int("have", len(out)),
			slog.Any("err", err),
		)
		return out, nil
	}

	return deep, nil
}

func (s *HistoryService) Search(ctx context.Context, q model.SearchQuery) ([]*model.Message, error) {
	if s.archive.Ready() {
		out, err := s.archive.Search(ctx, q)
		if err == nil {
			return out, nil
		}
		s.logger.Warn("archive search failed, serving mirror window",
			slog.Any("err", err),
		)
	}

	return s.mirror.Search(q), nil
}

// Overview assembles the guild landing screen in one call.
// [CONCURRENCY] Per-channel digests are fetched in parallel; one failing
// channel empties only its own digest slot.
func (s *HistoryService) Overview(ctx context.Context, guildID string) (*model.GuildOverview, error) {
	guild, ok := s.mirror.Guild(guildID)
	if !ok {
		return nil, ErrGuildUnknown
	}

	channels := s.mirror.Channels(guildID)
	digests := make([]*model.ChannelDigest, len(channels))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, ch := range channels {
		i, ch := i, ch
		g.Go(func() error {
			digest := &model.ChannelDigest{Channel: ch}
			if ch.Kind == model.ChannelText || ch.Kind == model.ChannelAnnouncement {
				msgs, err := s.Messages(gCtx, model.MessageQuery{ChannelID: ch.ID, Limit: 1})
				if err == nil && len(msgs) > 0 {
					digest.LastMessage = msgs[0]
				}
			}
			digests[i] = digest
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &model.GuildOverview{
		Guild:    guild,
		Members:  len(s.mirror.Members(guildID)),
		Channels: digests,
	}, nil
}
