package wsmarshaller

import (
	"encoding/json"
	"fmt"
)

// DecodeCommand parses a client control frame. Unknown operations are
// rejected here so the transport layer only ever sees valid commands.
func DecodeCommand(raw []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, fmt.Errorf("malformed control frame: %w", err)
	}

	switch cmd.Op {
	case OpSubscribe, OpUnsubscribe:
		if len(cmd.Guilds) == 0 && len(cmd.Channels) == 0 {
			return nil, fmt.Errorf("%s without scopes", cmd.Op)
		}
	case OpPing:
	case "":
		return nil, fmt.Errorf("control frame missing op")
	default:
		return nil, fmt.Errorf("unknown op %q", cmd.Op)
	}

	return &cmd, nil
}
