package store

import (
	"strings"
	"time"

	"github.com/guildview/panel-service/internal/domain/model"
)

// timeline is a bounded, append-ordered window of one channel's recent
// messages. When the cap is hit the oldest entries are shed, mirroring the
// drop-oldest discipline used everywhere else in the relay.
type timeline struct {
	items []*model.Message
	max   int
}

func newTimeline(max int) *timeline {
	return &timeline{max: max}
}

func (t *timeline) len() int { return len(t.items) }

func (t *timeline) add(m *model.Message) {
	t.items = append(t.items, m)
	if over := len(t.items) - t.max; over > 0 {
		t.items = append(t.items[:0], t.items[over:]...)
	}
}

func (t *timeline) edit(messageID, content string, editedAt time.Time) bool {
	for _, m := range t.items {
		if m.ID == messageID {
			m.Content = content
			if !editedAt.IsZero() {
				at := editedAt
				m.EditedAt = &at
			}
			return true
		}
	}
	return false
}

func (t *timeline) remove(messageID string) bool {
	for i, m := range t.items {
		if m.ID == messageID {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return true
		}
	}
	return false
}

// newestFirst copies out up to limit messages created before the bound,
// newest first. A zero bound means "from the top".
func (t *timeline) newestFirst(before time.Time, limit int) []*model.Message {
	if limit <= 0 {
		limit = len(t.items)
	}
	out := make([]*model.Message, 0, min(limit, len(t.items)))
	for i := len(t.items) - 1; i >= 0 && len(out) < limit; i-- {
		m := t.items[i]
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out
}

// match appends copies of messages whose content contains the pre-lowered
// needle.
func (t *timeline) match(needle string, out *[]*model.Message) {
	for _, m := range t.items {
		if strings.Contains(strings.ToLower(m.Content), needle) {
			cp := *m
			*out = append(*out, &cp)
		}
	}
}
