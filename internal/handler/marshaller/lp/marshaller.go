package lpmarshaller

import (
	"encoding/json"

	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/handler/marshaller"
)

// Response is the top-level long-poll body. Events arrive as a JSON array so
// a single poll can drain a whole batch.
type Response struct {
	Events []json.RawMessage `json:"events"`
}

// MarshallBatch renders a drained batch into one response body. Individual
// envelopes come pre-encoded from the shared frame cache, so an event that
// already went out over WebSocket costs nothing extra here.
func MarshallBatch(events []*event.Event) ([]byte, error) {
	res := Response{
		Events: make([]json.RawMessage, 0, len(events)),
	}

	for _, ev := range events {
		raw, err := marshaller.Encode(ev)
		if err != nil {
			// A single unencodable event must not starve the poller.
			continue
		}
		res.Events = append(res.Events, raw)
	}

	return json.Marshal(&res)
}
