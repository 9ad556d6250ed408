package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// TraceIDFrom exposes the frame's trace id to domain handlers, so their
// log lines correlate with the pipeline's own.
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// [TRACE_ID_MIDDLEWARE]
// Ensures trace id persistence through the call chain. A frame published
// without one gets a fresh id here, before anything downstream logs.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get("trace_id")
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set("trace_id", traceID)
		}
		msg.SetContext(context.WithValue(msg.Context(), traceIDKey, traceID))
		return h(msg)
	}
}

// [LOGGING_MIDDLEWARE]
// Structured logging with latency and trace id. This sits outside the
// poison hook, so an error surfacing here means the frame was lost, not
// parked.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()

			msgs, err := h(msg)
			if err != nil {
				logger.Error("ANNOUNCE_FRAME_LOST",
					"msg_id", msg.UUID,
					"trace_id", msg.Metadata.Get("trace_id"),
					"duration_ms", time.Since(start).Milliseconds(),
					"err", err,
				)
				return msgs, err
			}

			logger.Debug("ANNOUNCE_FRAME_HANDLED",
				"msg_id", msg.UUID,
				"trace_id", msg.Metadata.Get("trace_id"),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return msgs, nil
		}
	}
}

// [RETRY_MIDDLEWARE]
func NewRetryMiddleware() middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: time.Second * 2,
		MaxInterval:     time.Second * 15,
		Multiplier:      2.0,
	}
}
