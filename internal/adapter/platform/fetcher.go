package platform

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sony/gobreaker"

	"github.com/guildview/panel-service/config"
	"github.com/guildview/panel-service/internal/domain/model"
)

// Platform snowflake epoch, ms since the unix epoch.
const snowflakeEpochMs = 1420070400000

const (
	pageLimitDefault = 50
	// The platform refuses more than 100 messages per history request.
	pageLimitMax = 100
)

// Fetcher reads deep message history straight from the platform's REST
// API. It sits at the end of the history read chain, behind a circuit
// breaker: while the platform struggles, callers get an instant refusal
// instead of a hanging page.
type Fetcher struct {
	dg      *discordgo.Session
	logger  *slog.Logger
	enabled bool
	breaker *gobreaker.CircuitBreaker
}

func NewFetcher(cfg *config.Config, dg *discordgo.Session, logger *slog.Logger) *Fetcher {
	f := &Fetcher{
		dg:      dg,
		logger:  logger,
		enabled: dg != nil && cfg.Discord.Backfill,
	}
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "platform-rest",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("platform breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return f
}

// Ready reports whether deep reads may be attempted at all. A headless
// panel and a tripped breaker both answer no, and the history service
// serves whatever the local stores hold.
func (f *Fetcher) Ready() bool {
	return f.enabled && f.breaker.State() != gobreaker.StateOpen
}

// ChannelMessages pulls one history page ending before the given time.
func (f *Fetcher) ChannelMessages(ctx context.Context, channelID string, before time.Time, limit int) ([]*model.Message, error) {
	if !f.enabled {
		return nil, fmt.Errorf("platform backfill is disabled")
	}

	beforeID := ""
	if !before.IsZero() {
		beforeID = timeSnowflake(before)
	}

	out, err := f.breaker.Execute(func() (any, error) {
		return f.dg.ChannelMessages(channelID, clampPageLimit(limit), beforeID, "", "", discordgo.WithContext(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("platform history read: %w", err)
	}

	native := out.([]*discordgo.Message)
	msgs := make([]*model.Message, 0, len(native))
	for _, m := range native {
		msgs = append(msgs, mapRestMessage(channelID, m))
	}
	return msgs, nil
}

func clampPageLimit(limit int) int {
	if limit <= 0 {
		return pageLimitDefault
	}
	if limit > pageLimitMax {
		return pageLimitMax
	}
	return limit
}

// timeSnowflake mints the smallest platform snowflake for an instant,
// usable as an exclusive before-cursor on history reads.
func timeSnowflake(t time.Time) string {
	ms := t.UnixMilli() - snowflakeEpochMs
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatInt(ms<<22, 10)
}

// mapRestMessage converts one REST history entry. Unlike gateway
// frames, REST pages omit guild_id and can cover a channel the mirror
// has never seen, so the caller's channel id is authoritative.
func mapRestMessage(channelID string, m *discordgo.Message) *model.Message {
	msg := &model.Message{
		ID:        m.ID,
		ChannelID: channelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
		EditedAt:  m.EditedTimestamp,
	}
	if m.Author != nil {
		name := m.Author.Username
		if m.Author.GlobalName != "" {
			name = m.Author.GlobalName
		}
		msg.Author = model.Author{
			ID:     m.Author.ID,
			Name:   name,
			Avatar: m.Author.Avatar,
			Bot:    m.Author.Bot,
		}
	}
	for _, att := range m.Attachments {
		msg.Attachments = append(msg.Attachments, &model.Attachment{
			ID:       att.ID,
			URL:      att.URL,
			FileName: att.Filename,
			MimeType: att.ContentType,
			Size:     int64(att.Size),
		})
	}
	return msg
}
