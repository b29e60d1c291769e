package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sweater-ventures/dispatch/app"
)

func init() {
	registerRoute(func(d *app.Application, router *http.ServeMux) {
		router.Handle("GET /events/stream", routeHandler(d, eventStreamHandler))
	})
}

// eventStreamHandler streams assignment events over SSE. A subscriber that
// falls behind gets a `lagged` event with the number of missed messages and
// then keeps receiving.
func eventStreamHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	sub := d.Events.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log(r.Context()).Debug("SSE client connected")

	for {
		ev, err := sub.Next(r.Context())
		switch {
		case err == nil:
			payload, marshalErr := json.Marshal(ev)
			if marshalErr != nil {
				log(r.Context()).Error("Failed to marshal event for SSE", "error", marshalErr)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
		default:
			var lag *app.LagError
			if errors.As(err, &lag) {
				fmt.Fprintf(w, "event: lagged\ndata: {\"missed\":%d}\n\n", lag.Missed)
				break
			}
			if errors.Is(err, app.ErrBusClosed) {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
			}
			log(r.Context()).Debug("SSE client disconnected")
			return
		}
		flusher.Flush()
	}
}
