package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/guildview/panel-service/config"
	httpserver "github.com/guildview/panel-service/infra/server/http"
	"github.com/guildview/panel-service/internal/domain/event"
	"github.com/guildview/panel-service/internal/domain/registry"
	"github.com/guildview/panel-service/internal/handler/marshaller"
	wsmarshaller "github.com/guildview/panel-service/internal/handler/marshaller/ws"
	"github.com/guildview/panel-service/internal/service"
)

// Control frames above this size are junk; real ones fit in well under 1 KiB.
const maxControlFrameBytes = 4096

// Repeated rate violations before the connection is cut.
const rateStrikeLimit = 3

type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	upgrader  websocket.Upgrader

	pingInterval time.Duration
	pongWait     time.Duration
	writeTimeout time.Duration
	controlRate  rate.Limit
	controlBurst int
}

func NewWSHandler(logger *slog.Logger, deliverer service.Deliverer, cfg *config.Config) *WSHandler {
	return &WSHandler{
		logger:    logger,
		deliverer: deliverer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // panel sits behind the ops proxy
		},
		pingInterval: cfg.Relay.PingInterval,
		pongWait:     cfg.Relay.PingInterval * 10 / 9,
		writeTimeout: cfg.Relay.WriteTimeout,
		controlRate:  rate.Limit(cfg.Relay.ControlRate),
		controlBurst: cfg.Relay.ControlBurst,
	}
}

// ServeHTTP runs one client connection end to end. Identity comes from the
// Authenticate middleware; a request reaching this point is already vetted.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := httpserver.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}

	sess, ready := h.deliverer.Open(identity, registry.SessionMetadata{
		Transport: "websocket",
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})

	// READY goes out before Activate so nothing can be queued ahead of it.
	if err := h.write(ws, ready); err != nil {
		h.deliverer.Close(sess, "handshake write failed")
		_ = ws.Close()
		return
	}
	sess.Activate()

	h.logger.Info("ws opened",
		"user_id", identity.UserID, "session_id", sess.GetID(), "remote", r.RemoteAddr)

	go h.writePump(ws, sess)
	h.readPump(ws, sess)
}

// readPump owns the receive side: control frames, keepalive deadlines and
// per-session rate limiting. It returns when the connection dies, tearing
// the session down with it.
func (h *WSHandler) readPump(ws *websocket.Conn, sess *registry.Session) {
	defer func() {
		h.deliverer.Close(sess, "connection closed")
		_ = ws.Close()
	}()

	ws.SetReadLimit(maxControlFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(h.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	limiter := rate.NewLimiter(h.controlRate, h.controlBurst)
	strikes := 0

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("ws read ended", "session_id", sess.GetID(), "error", err)
			}
			return
		}

		if !limiter.Allow() {
			strikes++
			if strikes >= rateStrikeLimit {
				h.deliverer.Close(sess, "rate_limited")
				return
			}
			sess.Send(event.New(event.KindError, map[string]any{
				"code":   "RATE_LIMITED",
				"reason": "too many control frames, slow down",
			}))
			continue
		}

		cmd, err := wsmarshaller.DecodeCommand(raw)
		if err != nil {
			// Malformed input answers with an error frame, never a close.
			sess.Send(event.New(event.KindError, map[string]any{
				"code":   "BAD_COMMAND",
				"reason": err.Error(),
			}))
			continue
		}

		switch cmd.Op {
		case wsmarshaller.OpSubscribe:
			sess.Send(h.deliverer.Subscribe(sess, cmd.Scopes()))
		case wsmarshaller.OpUnsubscribe:
			sess.Send(h.deliverer.Unsubscribe(sess, cmd.Scopes()))
		case wsmarshaller.OpPing:
			sess.Send(event.New(event.KindPong, nil))
		}
	}
}

// writePump owns the send side: queued events, protocol pings and the final
// drain. Nothing else may write to the connection after the READY frame.
func (h *WSHandler) writePump(ws *websocket.Conn, sess *registry.Session) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case <-sess.Done():
			h.drain(ws, sess)
			h.farewell(ws, sess)
			sess.Finish()
			return

		case ev := <-sess.Recv():
			if err := h.write(ws, ev); err != nil {
				h.deliverer.Close(sess, "write failed")
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.deliverer.Close(sess, "ping failed")
				return
			}
		}
	}
}

func (h *WSHandler) write(ws *websocket.Conn, ev *event.Event) error {
	data, err := marshaller.Encode(ev)
	if err != nil {
		h.logger.Error("ws encode failed", "kind", ev.GetKind(), "error", err)
		return nil // skip the frame, keep the connection
	}

	_ = ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// drain flushes whatever the closed session still holds, bounded by the
// relay's drain budget. Shutdown farewell frames leave through here.
func (h *WSHandler) drain(ws *websocket.Conn, sess *registry.Session) {
	deadline := time.Now().Add(h.deliverer.DrainTimeout())

	for time.Now().Before(deadline) {
		select {
		case ev := <-sess.Recv():
			if err := h.write(ws, ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *WSHandler) farewell(ws *websocket.Conn, sess *registry.Session) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, sess.CloseReason())
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeTimeout))
}
