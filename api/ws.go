package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sweater-ventures/dispatch/app"
)

var upgrader = websocket.Upgrader{
	// The dashboard is served from the same origin; other origins are
	// fine too since the stream is read-only and unauthenticated.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsLagMessage struct {
	Type   string `json:"type"`
	Missed uint64 `json:"missed"`
}

// wsHandler streams assignment events over a websocket, mirroring the SSE
// stream for clients that prefer a socket.
func wsHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log(r.Context()).Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := d.Events.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader goroutine: we ignore client frames but need the read loop to
	// notice a closed connection.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	log(r.Context()).Info("Websocket client connected")

	for {
		ev, err := sub.Next(ctx)
		if err == nil {
			if err := conn.WriteJSON(ev); err != nil {
				break
			}
			continue
		}

		var lag *app.LagError
		if errors.As(err, &lag) {
			if err := conn.WriteJSON(wsLagMessage{Type: "lagged", Missed: lag.Missed}); err != nil {
				break
			}
			continue
		}

		if errors.Is(err, app.ErrBusClosed) {
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
			conn.WriteMessage(websocket.CloseMessage, msg)
		}
		break
	}

	log(r.Context()).Info("Websocket client disconnected")
}
