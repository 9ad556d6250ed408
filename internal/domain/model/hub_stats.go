package model

import "time"

type HubStats struct {
	Sessions      int    `json:"sessions"`
	GuildTopics   int    `json:"guild_topics"`
	ChannelTopics int    `json:"channel_topics"`
	Published     uint64 `json:"published"`
	Delivered     uint64 `json:"delivered"`
	Evicted       uint64 `json:"evicted"`
	Dropped       uint64 `json:"dropped"`
}

type MirrorStats struct {
	Guilds   int `json:"guilds"`
	Channels int `json:"channels"`
	Members  int `json:"members"`
	Messages int `json:"messages"`
}

type ArchiveStats struct {
	Enabled  bool   `json:"enabled"`
	Recorded uint64 `json:"recorded"`
	Flushes  uint64 `json:"flushes"`
	Failures uint64 `json:"failures"`
	Dropped  uint64 `json:"dropped"`
}

// StatsReport is the composite snapshot served to the admin API and the
// terminal monitor.
type StatsReport struct {
	Service    string        `json:"service"`
	Version    string        `json:"version"`
	Uptime     time.Duration `json:"uptime"`
	CapturedAt time.Time     `json:"captured_at"`
	Hub        HubStats      `json:"hub"`
	Mirror     MirrorStats   `json:"mirror"`
	Archive    ArchiveStats  `json:"archive"`
}
