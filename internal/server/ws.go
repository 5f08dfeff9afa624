package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// The observer socket is served to the admin frontend on the same host, so
// origin checks add nothing here.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// registerWSRoute serves the live observer feed. The socket is one-way: the
// admin frontend watches interview events as they happen but steers the
// session through the REST control endpoints, never over this channel.
func registerWSRoute(mux *http.ServeMux, hub *Hub) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		hello := ConnectionEvent{
			Event:     newEvent("connection", time.Now().UTC()),
			Connected: true,
		}
		if payload, err := json.Marshal(hello); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, payload)
		}

		// Drain inbound frames so close handshakes are noticed even while
		// the hub is quiet. Anything the observer sends is discarded.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		for {
			select {
			case <-closed:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	})
}
