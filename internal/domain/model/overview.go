package model

// ChannelDigest pairs a channel with the newest message seen in it, for the
// at-a-glance guild overview screen.
type ChannelDigest struct {
	Channel     *Channel `json:"channel"`
	LastMessage *Message `json:"last_message,omitempty"`
}

// GuildOverview is the aggregate answer for one guild: its profile, member
// count and a digest per channel.
type GuildOverview struct {
	Guild    *Guild           `json:"guild"`
	Members  int              `json:"members"`
	Channels []*ChannelDigest `json:"channels"`
}
