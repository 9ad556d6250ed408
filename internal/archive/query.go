package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/guildview/panel-service/internal/domain/model"
)

const messageColumns = `id, channel_id, guild_id, author, content, created_at, edited_at, attachments`

// Messages serves a newest-first page of one channel's history.
func (j *Journal) Messages(ctx context.Context, q model.MessageQuery) ([]*model.Message, error) {
	if !j.Ready() {
		return nil, ErrUnavailable
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	var before any
	if !q.Before.IsZero() {
		before = q.Before
	}

	rows, err := j.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM panel_messages
		WHERE channel_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, q.ChannelID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("query archived messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Search scans message bodies for a case-insensitive substring. A channel
// filter wins over a guild filter, matching the mirror's rule.
func (j *Journal) Search(ctx context.Context, q model.SearchQuery) ([]*model.Message, error) {
	if !j.Ready() {
		return nil, ErrUnavailable
	}

	needle := strings.TrimSpace(q.Text)
	if needle == "" {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	var guildID, channelID any
	switch {
	case q.ChannelID != "":
		channelID = q.ChannelID
	case q.GuildID != "":
		guildID = q.GuildID
	}

	rows, err := j.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM panel_messages
		WHERE content ILIKE '%' || $1 || '%'
			AND ($2::text IS NULL OR guild_id = $2)
			AND ($3::text IS NULL OR channel_id = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, escapeLike(needle), guildID, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("search archived messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]*model.Message, error) {
	var out []*model.Message
	for rows.Next() {
		var (
			msg         model.Message
			author      []byte
			attachments []byte
			editedAt    *time.Time
		)
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.GuildID, &author,
			&msg.Content, &msg.CreatedAt, &editedAt, &attachments); err != nil {
			return nil, fmt.Errorf("scan archived message: %w", err)
		}
		msg.EditedAt = editedAt
		if len(author) > 0 {
			_ = json.Unmarshal(author, &msg.Author)
		}
		if len(attachments) > 0 {
			_ = json.Unmarshal(attachments, &msg.Attachments)
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

// escapeLike neutralizes pattern metacharacters in user search input, so a
// literal "%" in the query matches a literal "%" in the text.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
