package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/i18n"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/model"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/payload"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/usecase"
	"github.com/luizclaudiolc/ozmap/shared/geo"
	"github.com/luizclaudiolc/ozmap/shared/geocoding"
	sharedmw "github.com/luizclaudiolc/ozmap/shared/middleware"
)

var errInvalidBody = errors.New("invalid request body")

// HealthCheck reports whether the service's dependencies are reachable.
type HealthCheck func(ctx context.Context) error

type geoHTTPHandler struct {
	userUsecase   usecase.UserUsecase
	regionUsecase usecase.RegionUsecase
	translator    *i18n.Translator
	healthCheck   HealthCheck
	logger        *zerolog.Logger
	exposeErrors  bool
}

// RouterConfig wires the HTTP surface of the geo service.
type RouterConfig struct {
	UserUsecase   usecase.UserUsecase
	RegionUsecase usecase.RegionUsecase
	Translator    *i18n.Translator
	HealthCheck   HealthCheck
	Logger        *zerolog.Logger

	// ExposeErrors adds the raw error to error responses.
	ExposeErrors bool

	// Metrics wraps every request and serves /metrics when set.
	Metrics interface {
		Middleware(next http.Handler) http.Handler
		Handler() http.Handler
	}

	// Auth guards the user and region routes when set.
	Auth func(next http.Handler) http.Handler
}

// NewRouter builds the chi router serving users, regions, health and metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	h := &geoHTTPHandler{
		userUsecase:   cfg.UserUsecase,
		regionUsecase: cfg.RegionUsecase,
		translator:    cfg.Translator,
		healthCheck:   cfg.HealthCheck,
		logger:        cfg.Logger,
		exposeErrors:  cfg.ExposeErrors,
	}
	if h.logger == nil {
		nop := zerolog.Nop()
		h.logger = &nop
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(sharedmw.RequestLogger(h.logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
		})

		r.Route("/regions", func(r chi.Router) {
			r.Get("/", h.ListRegions)
			r.Post("/", h.CreateRegion)
			r.Get("/contains", h.ContainsPoint)
			r.Get("/near", h.NearPoint)
			r.Get("/{id}", h.GetRegion)
			r.Put("/{id}", h.UpdateRegion)
			r.Delete("/{id}", h.DeleteRegion)
		})
	})

	return r
}

func (h *geoHTTPHandler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, geo.ErrInvalidCoordinates) {
			return err
		}
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}

	return h.translator.Struct(dst)
}

func (h *geoHTTPHandler) message(r *http.Request, key string) string {
	return h.translator.Message(h.translator.For(r.Header.Get("Accept-Language")), key)
}

func (h *geoHTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	trans := h.translator.For(r.Header.Get("Accept-Language"))

	status, key := classify(err)
	msg, isValidation := h.translator.ValidationMessage(trans, err)
	if isValidation {
		status = http.StatusBadRequest
	} else {
		msg = h.translator.Message(trans, key)
	}

	logger := zerolog.Ctx(r.Context())
	if logger.GetLevel() == zerolog.Disabled {
		logger = h.logger
	}
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Int("status", status).Msg(action)

	resp := payload.ErrorResponse{Message: msg}
	if h.exposeErrors {
		resp.Error = err.Error()
	}

	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrUserNotFound):
		return http.StatusNotFound, i18n.MsgUserNotFound
	case errors.Is(err, usecase.ErrRegionNotFound):
		return http.StatusNotFound, i18n.MsgRegionNotFound
	case errors.Is(err, model.ErrAddressOrCoordinatesConflict):
		return http.StatusBadRequest, i18n.MsgAddressOrCoordinates
	case errors.Is(err, model.ErrInvalidPolygon):
		return http.StatusBadRequest, i18n.MsgInvalidPolygon
	case errors.Is(err, model.ErrInvalidUserData):
		return http.StatusBadRequest, i18n.MsgInvalidUserData
	case errors.Is(err, model.ErrInvalidRegionData):
		return http.StatusBadRequest, i18n.MsgInvalidRegionData
	case errors.Is(err, usecase.ErrInvalidData):
		return http.StatusBadRequest, i18n.MsgInvalidData
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, i18n.MsgInvalidRequestBody
	case errors.Is(err, geocoding.ErrCoordinatesInvalid), errors.Is(err, geo.ErrInvalidCoordinates):
		return http.StatusBadRequest, i18n.MsgInvalidCoordinates
	case errors.Is(err, geocoding.ErrAddressInvalid):
		return http.StatusBadRequest, i18n.MsgInvalidAddress
	case errors.Is(err, geocoding.ErrAddressNotFound):
		return http.StatusUnprocessableEntity, i18n.MsgAddressNotFound
	case errors.Is(err, geocoding.ErrCoordinatesNotFound):
		return http.StatusUnprocessableEntity, i18n.MsgCoordinatesNotFound
	case errors.Is(err, geocoding.ErrTimeout):
		return http.StatusGatewayTimeout, i18n.MsgGeoTimeout
	case errors.Is(err, geocoding.ErrGeoService):
		return http.StatusBadGateway, i18n.MsgGeoService
	default:
		return http.StatusInternalServerError, i18n.MsgInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func listParams(r *http.Request) (usecase.ListParams, error) {
	page, err := intQuery(r, "page")
	if err != nil {
		return usecase.ListParams{}, err
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		return usecase.ListParams{}, err
	}

	return usecase.ListParams{Page: page, Limit: limit}, nil
}

func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", usecase.ErrInvalidData, name)
	}

	return n, nil
}

func floatQuery(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", usecase.ErrInvalidData, name)
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", usecase.ErrInvalidData, name)
	}

	return f, nil
}
