package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/i18n"
	"github.com/luizclaudiolc/ozmap/services/geo-service/internal/payload"
)

const healthCheckTimeout = 2 * time.Second

func (h *geoHTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.healthCheck(ctx); err != nil {
			h.logger.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, payload.ErrorResponse{
				Message: h.message(r, i18n.MsgServiceUnavailable),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, payload.HealthResponse{Status: "ok"})
}
