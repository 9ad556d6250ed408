package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/guildview/panel-service/internal/domain/event"
)

// DomainHandler is the business end of one consumer: decoded payload
// in, an optional event plus its target scopes out.
type DomainHandler[T any] func(ctx context.Context, payload *T) (*event.Event, []event.Scope, error)

// [INFRASTRUCTURE_BRIDGE]
// Bind connects a watermill delivery to domain logic, handling panic
// recovery, payload decoding and hub fan-out.
func Bind[T any](i *Ingest, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// [PANIC_RECOVERY]
		// A handler panic must not kill the consumer. The frame is
		// acked: a payload that panicked once panics on redelivery too.
		defer func() {
			if r := recover(); r != nil {
				i.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		// [DECODING]
		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			// ACK: a frame that never decodes never will.
			i.logger.Error("announce decode failed", "err", err, "msg_id", msg.UUID)
			return nil
		}

		// [EXECUTION]
		ev, scopes, err := fn(msg.Context(), payload)
		if err != nil {
			return err // NACK: retried, then parked on the poison queue.
		}
		if ev == nil {
			return nil
		}

		// [FAN_OUT_DISPATCH]
		// Service-wide frames reach every open session; targeted ones
		// ride the ordinary scope fan-out. Either way the event stays
		// local: ingested frames are never re-exported to the broker.
		if len(scopes) == 0 {
			i.hub.BroadcastAll(ev)
		} else {
			i.hub.Publish(ev, scopes...)
		}
		return nil
	}
}
