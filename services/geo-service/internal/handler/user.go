package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/i18n"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/payload"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/usecase"
)

func (h *geoHTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		h.writeError(w, r, err, "invalid user list parameters")
		return
	}

	page, err := h.userUsecase.ListUsers(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *geoHTTPHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req payload.CreateUserRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err, "invalid create user request")
		return
	}

	user, err := h.userUsecase.CreateUser(r.Context(), usecase.CreateUserParams{
		Name:        req.Name,
		Email:       req.Email,
		Address:     req.Address,
		Coordinates: req.Coordinates,
		Regions:     req.Regions,
	})
	if err != nil {
		h.writeError(w, r, err, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *geoHTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userUsecase.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *geoHTTPHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req payload.UpdateUserRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err, "invalid update user request")
		return
	}

	user, err := h.userUsecase.UpdateUser(r.Context(), chi.URLParam(r, "id"), usecase.UpdateUserParams{
		Name:        req.Name,
		Email:       req.Email,
		Address:     req.Address,
		Coordinates: req.Coordinates,
		Regions:     req.Regions,
	})
	if err != nil {
		h.writeError(w, r, err, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, payload.UpdateUserResponse{
		Message: h.message(r, i18n.MsgUserUpdated),
		User:    user,
	})
}

func (h *geoHTTPHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userUsecase.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err, "failed to delete user")
		return
	}

	writeJSON(w, http.StatusOK, payload.MessageResponse{Message: h.message(r, i18n.MsgUserDeleted)})
}
