package archive

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The journal bootstraps its own schema: the panel ships as a single binary
// and must come up against an empty database.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS panel_messages (
	id          TEXT PRIMARY KEY,
	channel_id  TEXT NOT NULL,
	guild_id    TEXT NOT NULL DEFAULT '',
	author      JSONB NOT NULL DEFAULT '{}',
	content     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	edited_at   TIMESTAMPTZ,
	attachments JSONB
);

CREATE INDEX IF NOT EXISTS panel_messages_channel_time
	ON panel_messages (channel_id, created_at DESC);

CREATE INDEX IF NOT EXISTS panel_messages_guild
	ON panel_messages (guild_id);
`

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}
