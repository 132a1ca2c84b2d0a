package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/pubsub"
	"github.com/yoockh/yoochat/internal/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

type WSHandler struct {
	sessions services.SessionService
	bus      pubsub.Bus
	upgrader websocket.Upgrader
}

// NewWSHandler accepts upgrades from any origin when allowed is nil.
func NewWSHandler(sessions services.SessionService, bus pubsub.Bus, allowed func(origin string) bool) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		bus:      bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowed == nil {
					return true
				}
				return allowed(r.Header.Get("Origin"))
			},
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) write(messageType int, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(messageType, b)
}

// SessionWS pushes the session's turn events as JSON text frames. Client
// frames are read only to observe pings and the close handshake.
func (h *WSHandler) SessionWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, err := h.sessions.Get(sessionID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := h.bus.Subscribe(ctx, sessionID)
	if err != nil {
		_ = wc.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "event stream unavailable"))
		return
	}
	defer sub.Close()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := wc.write(websocket.TextMessage, b); err != nil {
				return
			}
			if ev.Type == models.EventSessionDeleted {
				_ = wc.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session deleted"))
				return
			}
		}
	}
}
