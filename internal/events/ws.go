package events

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is served from a different origin in development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades the request and streams cycle results as JSON until
// the client disconnects. Inbound frames are read only to detect close.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	ch, cancel := h.Subscribe()
	defer cancel()
	defer conn.Close()

	h.logger.Info("dashboard client connected", "remote", r.RemoteAddr)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case result, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(result); err != nil {
				h.logger.Debug("dashboard client write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-closed:
			h.logger.Info("dashboard client disconnected", "remote", r.RemoteAddr)
			return
		}
	}
}
