package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

const msgInvalidBody = "Cuerpo de la solicitud inválido"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// responder writes envelope responses.
type responder struct {
	logger *zap.Logger
}

// writeJSON writes a JSON response with the given status code.
func (h responder) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeSuccess writes a successful envelope.
func (h responder) writeSuccess(w http.ResponseWriter, status int, data any) {
	h.writeJSON(w, status, model.NewSuccessEnvelope(data))
}

// writeError writes a failed envelope with the given status code and message.
func (h responder) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, model.NewErrorEnvelope(message))
}

// handleError maps a storefront error onto a status code and writes its
// display message.
func (h responder) handleError(w http.ResponseWriter, err error, operation string) {
	status := errorStatus(err)

	fields := []zap.Field{zap.String("operation", operation), zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("backend operation failed", fields...)
	} else {
		h.logger.Debug("operation rejected", fields...)
	}

	h.writeError(w, status, apiclient.DisplayMessage(err))
}

// errorStatus returns the response status for err. Validation failures are
// 400 and unauthorized 401. Business failures keep the backend's 4xx
// status. A rejection the backend answered with a success status (or none
// recorded, as for an allOK=false envelope) becomes 422. Anything else is
// 502.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, apiclient.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apiclient.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apiclient.ErrBusiness):
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.Status >= 400 && apiErr.Status < 500:
				return apiErr.Status
			case apiErr.Status == 0, apiErr.Status >= 200 && apiErr.Status < 300:
				return http.StatusUnprocessableEntity
			}
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// decodeBody decodes a JSON request body into dst, writing a 400 response
// and returning false when it cannot.
func (h responder) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.Debug("invalid request body", zap.String("path", r.URL.Path), zap.Error(err))
		h.writeError(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	responder
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{responder: responder{logger: logger}}
}

// RegisterRoutes registers the health routes with the router.
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
}

// HealthCheck handles GET /health requests.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeSuccess(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// ReadyCheck handles GET /ready requests.
func (h *HealthHandler) ReadyCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeSuccess(w, http.StatusOK, ReadyResponse{Status: "ready"})
}
