package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sweater-ventures/dispatch/app"
	"github.com/sweater-ventures/dispatch/config"
)

type routeRegistrationFunc func(d *app.Application, router *http.ServeMux)

var routes []routeRegistrationFunc

func registerRoute(r routeRegistrationFunc) {
	routes = append(routes, r)
}

// AddApis mounts the JSON API under /api and the operational endpoints
// (health, metrics, websocket stream, version) at the root.
func AddApis(d *app.Application, router *http.ServeMux) {
	slog.Debug("Registering all API Endpoints", "count", len(routes))
	apiRouter := http.NewServeMux()
	for _, r := range routes {
		r(d, apiRouter)
	}
	router.Handle("/api/", http.StripPrefix("/api", apiRouter))

	router.Handle("GET /health", routeHandler(d, healthHandler))
	router.Handle("GET /metrics", d.Metrics.Handler())
	router.Handle("GET /ws", routeHandler(d, wsHandler))
	router.Handle("GET /version", routeHandler(d, versionHandler))
}

func log(ctx context.Context) *slog.Logger {
	log := ctx.Value(config.LoggerContextKey)
	if log == nil {
		return slog.Default()
	} else {
		return log.(*slog.Logger)
	}
}

type appHandler func(d *app.Application, w http.ResponseWriter, r *http.Request)

func routeHandler(d *app.Application, handler appHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(d, w, r)
	})
}

func writeJsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
