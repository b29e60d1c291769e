package api

import (
	"net/http"

	"github.com/sweater-ventures/dispatch/app"
	"github.com/sweater-ventures/dispatch/config"
)

type VersionResponse struct {
	App     string `json:"app"`
	Version string `json:"version"`
}

func versionHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, VersionResponse{
		App:     "dispatch",
		Version: config.Version,
	})
}
