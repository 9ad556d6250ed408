package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guildview/panel-service/config"
	"github.com/guildview/panel-service/internal/domain/model"
)

// ErrUnavailable is returned by reads while the journal has no database
// behind it, either because archiving is disabled or not started yet.
var ErrUnavailable = errors.New("message archive is not available")

// inputQueueSize bounds the hand-off between the gateway feed and the
// writer. When the database falls behind, mutations are shed here instead
// of stalling the feed.
const inputQueueSize = 4096

type mutationOp int8

const (
	opRecord mutationOp = iota + 1
	opAmend
	opDiscard
)

// mutation is one deferred write. Order is preserved end to end, so an
// amend can never overtake the record it patches.
type mutation struct {
	op        mutationOp
	msg       *model.Message
	messageID string
	content   string
	editedAt  time.Time
}

// Journal is the durable message store behind the mirror's bounded window.
// The gateway adapter feeds it; the history service reads it. Writes are
// batched the whole way: mutations queue on a channel, the consume loop
// groups them, and one pgx batch per flush hits the database.
type Journal struct {
	cfg    config.ArchiveConfig
	logger *slog.Logger
	pool   *pgxpool.Pool

	input chan mutation

	pendingMu sync.Mutex
	pending   []mutation

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  atomic.Bool

	recorded uint64 // [ATOMIC_FIELD]
	flushes  uint64 // [ATOMIC_FIELD]
	failures uint64 // [ATOMIC_FIELD]
	dropped  uint64 // [ATOMIC_FIELD]
}

func New(cfg *config.Config, logger *slog.Logger) *Journal {
	ac := cfg.Archive
	if ac.FlushSize <= 0 {
		ac.FlushSize = 64
	}
	if ac.FlushInterval <= 0 {
		ac.FlushInterval = 3 * time.Second
	}
	return &Journal{
		cfg:     ac,
		logger:  logger,
		input:   make(chan mutation, inputQueueSize),
		pending: make([]mutation, 0, ac.FlushSize),
	}
}

// Ready reports whether reads may be attempted.
func (j *Journal) Ready() bool { return j.ready.Load() }

// Start connects, bootstraps the schema and spawns the writer loops.
// A bad DSN fails app startup: an operator who enabled archiving wants to
// hear about a dead database at deploy time, not at read time.
func (j *Journal) Start(ctx context.Context) error {
	if !j.cfg.Enabled {
		return nil
	}

	pool, err := pgxpool.New(ctx, j.cfg.DSN)
	if err != nil {
		return fmt.Errorf("create archive pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping archive: %w", err)
	}
	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	j.pool = pool

	// The loops outlive the start call; they stop via Stop's cancel.
	j.ctx, j.cancel = context.WithCancel(context.Background())
	j.wg.Add(2)
	go j.consumeLoop()
	go j.flushLoop()

	j.ready.Store(true)
	j.logger.Info("archive started",
		"flush_size", j.cfg.FlushSize, "flush_interval", j.cfg.FlushInterval)
	return nil
}

// Stop halts the loops, drains the hand-off queue and flushes what is left.
func (j *Journal) Stop(ctx context.Context) error {
	if !j.cfg.Enabled || j.pool == nil {
		return nil
	}
	j.ready.Store(false)
	j.cancel()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("archive writer stop timed out")
	}

	// Sweep whatever the adapter handed over before the cutoff.
	for {
		select {
		case mut := <-j.input:
			j.pendingMu.Lock()
			j.pending = append(j.pending, mut)
			j.pendingMu.Unlock()
			continue
		default:
		}
		break
	}
	j.flush(ctx)

	j.pool.Close()
	j.logger.Info("archive stopped")
	return nil
}

// ------------------- WRITE SIDE (GATEWAY ADAPTER) ----------

func (j *Journal) Record(msg *model.Message) {
	if !j.cfg.Enabled || msg == nil {
		return
	}
	j.offer(mutation{op: opRecord, msg: msg})
}

func (j *Journal) Amend(_, messageID, content string, editedAt time.Time) {
	if !j.cfg.Enabled || messageID == "" {
		return
	}
	j.offer(mutation{op: opAmend, messageID: messageID, content: content, editedAt: editedAt})
}

func (j *Journal) Discard(_, messageID string) {
	if !j.cfg.Enabled || messageID == "" {
		return
	}
	j.offer(mutation{op: opDiscard, messageID: messageID})
}

// offer hands a mutation to the writer without ever blocking the feed.
func (j *Journal) offer(mut mutation) {
	select {
	case j.input <- mut:
		atomic.AddUint64(&j.recorded, 1)
	default:
		atomic.AddUint64(&j.dropped, 1)
	}
}

func (j *Journal) Stats() model.ArchiveStats {
	return model.ArchiveStats{
		Enabled:  j.cfg.Enabled,
		Recorded: atomic.LoadUint64(&j.recorded),
		Flushes:  atomic.LoadUint64(&j.flushes),
		Failures: atomic.LoadUint64(&j.failures),
		Dropped:  atomic.LoadUint64(&j.dropped),
	}
}

// ------------------- WRITER LOOPS --------------------------

func (j *Journal) consumeLoop() {
	defer j.wg.Done()
	for {
		select {
		case <-j.ctx.Done():
			return
		case mut := <-j.input:
			j.pendingMu.Lock()
			j.pending = append(j.pending, mut)
			full := len(j.pending) >= j.cfg.FlushSize
			j.pendingMu.Unlock()
			if full {
				j.flush(j.ctx)
			}
		}
	}
}

func (j *Journal) flushLoop() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.flush(j.ctx)
		}
	}
}

func (j *Journal) flush(ctx context.Context) {
	j.pendingMu.Lock()
	pending := j.pending
	j.pending = make([]mutation, 0, j.cfg.FlushSize)
	j.pendingMu.Unlock()

	if len(pending) == 0 {
		return
	}

	start := time.Now()
	if err := j.writeBatch(ctx, pending); err != nil {
		// The batch is gone; counting it is all that is left to do.
		atomic.AddUint64(&j.failures, 1)
		j.logger.Error("archive flush failed", "err", err, "mutations", len(pending))
		return
	}
	atomic.AddUint64(&j.flushes, 1)
	j.logger.Debug("archive flushed",
		"mutations", len(pending), "duration_ms", time.Since(start).Milliseconds())
}

func (j *Journal) writeBatch(ctx context.Context, pending []mutation) error {
	batch := &pgx.Batch{}
	for i := range pending {
		queueMutation(batch, &pending[i])
	}

	results := j.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range pending {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// queueMutation appends one mutation's statement to the batch. Records are
// upserts: reconnect replays must not fail the whole flush.
func queueMutation(batch *pgx.Batch, mut *mutation) {
	switch mut.op {
	case opRecord:
		author, _ := json.Marshal(mut.msg.Author)
		var attachments []byte
		if len(mut.msg.Attachments) > 0 {
			attachments, _ = json.Marshal(mut.msg.Attachments)
		}
		batch.Queue(`
			INSERT INTO panel_messages (id, channel_id, guild_id, author, content, created_at, edited_at, attachments)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, edited_at = EXCLUDED.edited_at
		`, mut.msg.ID, mut.msg.ChannelID, mut.msg.GuildID, author,
			mut.msg.Content, mut.msg.CreatedAt, mut.msg.EditedAt, attachments)
	case opAmend:
		// Edits of messages born before the journal silently no-op.
		batch.Queue(`
			UPDATE panel_messages SET content = $2, edited_at = $3 WHERE id = $1
		`, mut.messageID, mut.content, mut.editedAt)
	case opDiscard:
		batch.Queue(`
			DELETE FROM panel_messages WHERE id = $1
		`, mut.messageID)
	}
}
