package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/guildview/panel-service/config"
	"github.com/guildview/panel-service/internal/domain/event"
)

const exportQueueSize = 4096

// ExportRecord is the broker-side envelope. External consumers see this
// shape, never the panel's internal event type, so it can stay stable
// while the internals move.
type ExportRecord struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Type      string         `json:"type"`
	GuildID   string         `json:"guild_id,omitempty"`
	ChannelID string         `json:"channel_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	SentAt    int64          `json:"sent_at"`
}

// Feed re-publishes every translated panel event onto a durable topic
// exchange for systems outside the panel: search indexers, audit
// pipelines, whatever binds a queue. The gateway hands events over
// through a bounded queue and never waits on the broker.
type Feed struct {
	cfg       config.ExportConfig
	logger    *slog.Logger
	wmLogger  watermill.LoggerAdapter
	publisher message.Publisher

	queue  chan *event.Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	exported uint64 // [ATOMIC_FIELD]
	failures uint64 // [ATOMIC_FIELD]
	shed     uint64 // [ATOMIC_FIELD]
}

func NewFeed(cfg *config.Config, logger *slog.Logger, wmLogger watermill.LoggerAdapter) *Feed {
	return &Feed{
		cfg:      cfg.Export,
		logger:   logger,
		wmLogger: wmLogger,
		queue:    make(chan *event.Event, exportQueueSize),
	}
}

// Export hands an event to the publishing pump without ever blocking
// the caller. When the queue is full the event is shed and counted:
// the live relay always outranks the export feed.
func (f *Feed) Export(ev *event.Event) {
	if !f.cfg.Enabled || ev == nil {
		return
	}
	select {
	case f.queue <- ev:
	default:
		atomic.AddUint64(&f.shed, 1)
	}
}

// Start connects to the broker and begins pumping. A dead broker fails
// startup: an operator who enabled the export feed wants to hear about
// it at deploy time.
func (f *Feed) Start(ctx context.Context) error {
	if !f.cfg.Enabled {
		return nil
	}
	pub, err := NewPublisher(f.cfg.URL, f.cfg.Exchange, f.wmLogger)
	if err != nil {
		return fmt.Errorf("open export publisher: %w", err)
	}
	f.publisher = pub

	// The pump outlives the start call, so it runs on its own context.
	f.ctx, f.cancel = context.WithCancel(context.Background())
	f.wg.Add(1)
	go f.pump()

	f.logger.Info("export feed started", "exchange", f.cfg.Exchange)
	return nil
}

// [GRACEFUL_SHUTDOWN]
// Stop halts the pump, publishes whatever is still queued, and closes
// the broker connection. The shutdown context bounds the drain.
func (f *Feed) Stop(ctx context.Context) error {
	if !f.cfg.Enabled || f.publisher == nil {
		return nil
	}
	f.cancel()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		f.logger.Warn("export pump did not stop in time")
	}

	for {
		select {
		case ev := <-f.queue:
			f.publish(ev)
			continue
		default:
		}
		break
	}
	return f.publisher.Close()
}

// Stats reports the pump counters for the admin page.
func (f *Feed) Stats() (exported, failures, shed uint64) {
	return atomic.LoadUint64(&f.exported),
		atomic.LoadUint64(&f.failures),
		atomic.LoadUint64(&f.shed)
}

func (f *Feed) pump() {
	defer f.wg.Done()
	for {
		select {
		case <-f.ctx.Done():
			return
		case ev := <-f.queue:
			f.publish(ev)
		}
	}
}

func (f *Feed) publish(ev *event.Event) {
	record := buildRecord(ev)
	payload, err := json.Marshal(record)
	if err != nil {
		atomic.AddUint64(&f.failures, 1)
		f.logger.Error("export encode failed", "kind", ev.GetKind(), "err", err)
		return
	}

	msg := message.NewMessage(ev.GetID(), payload)
	msg.Metadata.Set("event_kind", ev.GetKind())

	if err := f.publisher.Publish(routingKey(ev), msg); err != nil {
		// The relay never hears about this; external consumers just
		// miss one record.
		atomic.AddUint64(&f.failures, 1)
		f.logger.Error("export publish failed", "kind", ev.GetKind(), "err", err)
		return
	}
	atomic.AddUint64(&f.exported, 1)
}

func buildRecord(ev *event.Event) ExportRecord {
	record := ExportRecord{
		ID:     ev.GetID(),
		Source: "panel-service",
		Type:   ev.GetKind(),
		Data:   ev.GetData(),
		SentAt: ev.GetOccurredAt(),
	}
	data := ev.GetData()
	if g, ok := data["guild_id"].(string); ok {
		record.GuildID = g
	}
	if c, ok := data["channel_id"].(string); ok {
		record.ChannelID = c
	}
	return record
}

// routingKey derives panel.events.{guild}.{kind} so consumers can bind
// one guild, one kind, or everything with the usual AMQP wildcards.
func routingKey(ev *event.Event) string {
	guild := "none"
	if g, ok := ev.GetData()["guild_id"].(string); ok && g != "" {
		guild = g
	}
	return "panel.events." + guild + "." + strings.ToLower(ev.GetKind())
}
