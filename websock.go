// WebSocket bridge for browser clients. Each text message carries one or
// more of the same JSON frames the stream socket speaks; the session never
// learns which transport a player arrived on.

package main

import (
	"bytes"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (t *wsTransport) WriteFrame(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(timeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

func serveGameSocket(cfg *Config, session *Session) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade: %v", err)
			return
		}

		logf(cfg, "SERVE: WebSocket connection from %s", conn.RemoteAddr())

		t := &wsTransport{conn: conn}
		defer session.disconnect(t)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			for _, line := range bytes.Split(data, []byte{'\n'}) {
				line = bytes.TrimSpace(line)
				if len(line) == 0 {
					continue
				}

				msg, err := decodeFrame(line)
				if err != nil {
					logf(cfg, "SERVE: Dropped frame from %s: %v", conn.RemoteAddr(), err)
					continue
				}

				session.dispatch(t, msg)
			}
		}
	}
}
