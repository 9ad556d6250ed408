package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/guildview/panel-service/config"
	"github.com/guildview/panel-service/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJournal(enabled bool) *Journal {
	cfg := &config.Config{}
	cfg.Archive.Enabled = enabled
	cfg.Archive.FlushSize = 4
	cfg.Archive.FlushInterval = time.Second
	return New(cfg, testLogger())
}

func TestDisabledJournalIsInert(t *testing.T) {
	j := newJournal(false)

	if j.Ready() {
		t.Fatal("disabled journal reports ready")
	}
	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Start on disabled journal: %v", err)
	}

	// Writes vanish without touching the queue.
	j.Record(&model.Message{ID: "m1", ChannelID: "c1"})
	j.Amend("c1", "m1", "edited", time.Now())
	j.Discard("c1", "m1")
	if got := j.Stats(); got.Recorded != 0 || got.Dropped != 0 {
		t.Errorf("stats = %+v, want untouched", got)
	}

	if _, err := j.Messages(context.Background(), model.MessageQuery{ChannelID: "c1"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Messages err = %v, want ErrUnavailable", err)
	}
	if _, err := j.Search(context.Background(), model.SearchQuery{Text: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search err = %v, want ErrUnavailable", err)
	}
}

func TestOfferShedsWhenWriterFallsBehind(t *testing.T) {
	j := newJournal(true)
	// Loops not started: the queue only fills.

	for i := 0; i < inputQueueSize+5; i++ {
		j.Record(&model.Message{ID: "m", ChannelID: "c1"})
	}

	got := j.Stats()
	if got.Recorded != inputQueueSize {
		t.Errorf("recorded = %d, want %d", got.Recorded, inputQueueSize)
	}
	if got.Dropped != 5 {
		t.Errorf("dropped = %d, want 5", got.Dropped)
	}
}

func TestWritesIgnoreEmptyIdentifiers(t *testing.T) {
	j := newJournal(true)

	j.Record(nil)
	j.Amend("c1", "", "noop", time.Now())
	j.Discard("c1", "")

	if got := j.Stats().Recorded; got != 0 {
		t.Errorf("recorded = %d, want 0", got)
	}
}

func TestQueueMutationCoversEveryOp(t *testing.T) {
	now := time.Now()
	muts := []mutation{
		{op: opRecord, msg: &model.Message{
			ID: "m1", ChannelID: "c1", GuildID: "g1",
			Author:    model.Author{ID: "u1", Name: "ana"},
			Content:   "hello",
			CreatedAt: now,
			Attachments: []*model.Attachment{
				{ID: "a1", URL: "https://cdn.example/a1.png", FileName: "a1.png", Size: 12},
			},
		}},
		{op: opAmend, messageID: "m1", content: "edited", editedAt: now},
		{op: opDiscard, messageID: "m1"},
	}

	batch := &pgx.Batch{}
	for i := range muts {
		queueMutation(batch, &muts[i])
	}
	if batch.Len() != len(muts) {
		t.Errorf("batch len = %d, want %d", batch.Len(), len(muts))
	}
}

func TestEscapeLike(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"snake_case", `snake\_case`},
		{`back\slash`, `back\\slash`},
	}
	for _, tc := range cases {
		if got := escapeLike(tc.in); got != tc.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
