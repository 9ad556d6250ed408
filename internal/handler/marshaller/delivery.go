package marshaller

import (
	"encoding/json"

	"github.com/guildview/panel-service/internal/domain/event"
)

// Frame is the envelope every consumer-facing transport speaks. WebSocket
// sessions receive one frame per message; long-poll responses batch them.
type Frame struct {
	Type   string         `json:"type"`
	Data   map[string]any `json:"data,omitempty"`
	ID     string         `json:"id"`
	SentAt int64          `json:"sent_at"`
}

// Encode renders an event into its wire envelope exactly once. The encoded
// bytes are cached on the event itself, so a broadcast to N subscribers
// costs one json.Marshal, not N.
func Encode(ev *event.Event) ([]byte, error) {
	if cached := ev.GetCached(); cached != nil {
		return cached, nil
	}

	raw, err := json.Marshal(&Frame{
		Type:   ev.GetKind(),
		Data:   ev.GetData(),
		ID:     ev.GetID(),
		SentAt: ev.GetOccurredAt(),
	})
	if err != nil {
		return nil, err
	}

	// STORE: later subscribers and retries reuse the same bytes.
	ev.SetCached(raw)

	return raw, nil
}
