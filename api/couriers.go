package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sweater-ventures/dispatch/app"
	"github.com/sweater-ventures/dispatch/geo"
)

func init() {
	registerRoute(func(d *app.Application, router *http.ServeMux) {
		router.Handle("POST /couriers", routeHandler(d, createCourierHandler))
		router.Handle("GET /couriers", routeHandler(d, listCouriersHandler))
		router.Handle("GET /couriers/{id}", routeHandler(d, getCourierHandler))
		router.Handle("PATCH /couriers/{id}/status", routeHandler(d, updateCourierStatusHandler))
		router.Handle("PATCH /couriers/{id}/location", routeHandler(d, updateCourierLocationHandler))
	})
}

type CreateCourierRequest struct {
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
	Capacity int       `json:"capacity"`
	Rating   float64   `json:"rating"`
}

type UpdateCourierStatusRequest struct {
	Status app.CourierStatus `json:"status"`
}

type UpdateCourierLocationRequest struct {
	Location geo.Point `json:"location"`
}

func createCourierHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	var req CreateCourierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Capacity < 1 {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "capacity must be at least 1"})
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "rating must be between 0 and 5"})
		return
	}
	if !req.Location.Valid() {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "location is out of range"})
		return
	}

	courier := d.Store.CreateCourier(app.CreateCourierParams{
		Name:     req.Name,
		Location: req.Location,
		Capacity: req.Capacity,
		Rating:   req.Rating,
	})

	log(r.Context()).Info("Courier registered", "courier_id", courier.ID, "name", courier.Name)
	writeJsonResponse(w, http.StatusCreated, courier)
}

func listCouriersHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, d.Store.ListCouriers())
}

func getCourierHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "id must be a valid UUID"})
		return
	}

	courier, err := d.Store.GetCourier(id)
	if err != nil {
		writeJsonResponse(w, http.StatusNotFound, map[string]string{"error": "courier not found"})
		return
	}
	writeJsonResponse(w, http.StatusOK, courier)
}

func updateCourierStatusHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "id must be a valid UUID"})
		return
	}

	var req UpdateCourierStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if !req.Status.Valid() {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "status must be one of Available, Busy, Offline"})
		return
	}

	courier, err := d.Store.PatchCourierStatus(id, req.Status)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			writeJsonResponse(w, http.StatusNotFound, map[string]string{"error": "courier not found"})
			return
		}
		log(r.Context()).Error("Failed to update courier status", "error", err)
		writeJsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update courier"})
		return
	}

	log(r.Context()).Info("Courier status updated", "courier_id", courier.ID, "status", courier.Status)
	writeJsonResponse(w, http.StatusOK, courier)
}

func updateCourierLocationHandler(d *app.Application, w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "id must be a valid UUID"})
		return
	}

	var req UpdateCourierLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if !req.Location.Valid() {
		writeJsonResponse(w, http.StatusBadRequest, map[string]string{"error": "location is out of range"})
		return
	}

	courier, err := d.Store.PatchCourierLocation(id, req.Location)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			writeJsonResponse(w, http.StatusNotFound, map[string]string{"error": "courier not found"})
			return
		}
		log(r.Context()).Error("Failed to update courier location", "error", err)
		writeJsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update courier"})
		return
	}

	writeJsonResponse(w, http.StatusOK, courier)
}
