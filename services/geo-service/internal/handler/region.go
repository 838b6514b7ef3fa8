package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/i18n"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/payload"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/usecase"
	"github.com/luizclaudiolc/ozmap/shared/geo"
)

func (h *geoHTTPHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		h.writeError(w, r, err, "invalid region list parameters")
		return
	}

	page, err := h.regionUsecase.ListRegions(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err, "failed to list regions")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *geoHTTPHandler) CreateRegion(w http.ResponseWriter, r *http.Request) {
	var req payload.CreateRegionRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err, "invalid create region request")
		return
	}

	region, err := h.regionUsecase.CreateRegion(r.Context(), usecase.CreateRegionParams{
		Name:     req.Name,
		Boundary: *req.Boundary,
		User:     req.User,
	})
	if err != nil {
		h.writeError(w, r, err, "failed to create region")
		return
	}

	writeJSON(w, http.StatusCreated, region)
}

func (h *geoHTTPHandler) GetRegion(w http.ResponseWriter, r *http.Request) {
	region, err := h.regionUsecase.GetRegion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "failed to get region")
		return
	}

	writeJSON(w, http.StatusOK, region)
}

func (h *geoHTTPHandler) UpdateRegion(w http.ResponseWriter, r *http.Request) {
	var req payload.UpdateRegionRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err, "invalid update region request")
		return
	}

	region, err := h.regionUsecase.UpdateRegion(r.Context(), chi.URLParam(r, "id"), usecase.UpdateRegionParams{
		Name:     req.Name,
		Boundary: req.Boundary,
		User:     req.User,
	})
	if err != nil {
		h.writeError(w, r, err, "failed to update region")
		return
	}

	writeJSON(w, http.StatusOK, region)
}

func (h *geoHTTPHandler) DeleteRegion(w http.ResponseWriter, r *http.Request) {
	if err := h.regionUsecase.DeleteRegion(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err, "failed to delete region")
		return
	}

	writeJSON(w, http.StatusOK, payload.MessageResponse{Message: h.message(r, i18n.MsgRegionDeleted)})
}

func (h *geoHTTPHandler) ContainsPoint(w http.ResponseWriter, r *http.Request) {
	point, err := pointQuery(r)
	if err != nil {
		h.writeError(w, r, err, "invalid contains query")
		return
	}

	region, err := h.regionUsecase.ContainsPoint(r.Context(), point)
	if err != nil {
		h.writeError(w, r, err, "failed to find region containing point")
		return
	}

	writeJSON(w, http.StatusOK, region)
}

func (h *geoHTTPHandler) NearPoint(w http.ResponseWriter, r *http.Request) {
	point, err := pointQuery(r)
	if err != nil {
		h.writeError(w, r, err, "invalid near query")
		return
	}

	distance, err := floatQuery(r, "distance")
	if err != nil {
		h.writeError(w, r, err, "invalid near query")
		return
	}

	regions, err := h.regionUsecase.NearPoint(r.Context(), usecase.NearPointParams{
		Point:       point,
		Distance:    distance,
		ExcludeUser: r.URL.Query().Get("excludeUser"),
	})
	if err != nil {
		h.writeError(w, r, err, "failed to find regions near point")
		return
	}

	writeJSON(w, http.StatusOK, regions)
}

func pointQuery(r *http.Request) (geo.Coordinates, error) {
	lat, err := floatQuery(r, "lat")
	if err != nil {
		return geo.Coordinates{}, err
	}
	lng, err := floatQuery(r, "lng")
	if err != nil {
		return geo.Coordinates{}, err
	}

	return geo.Coordinates{Lat: lat, Lng: lng}, nil
}
