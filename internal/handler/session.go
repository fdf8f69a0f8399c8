package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/model"
	"github.com/vyrodovalexey/gamestore/internal/session"
)

// SessionHandler serves login, logout and session checks.
type SessionHandler struct {
	responder
	session *session.Store
}

// NewSessionHandler creates a new SessionHandler instance.
func NewSessionHandler(store *session.Store, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		responder: responder{logger: logger},
		session:   store,
	}
}

// RegisterRoutes registers the session routes under the API router.
func (h *SessionHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/session", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/session/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/session/logout", h.Logout).Methods(http.MethodPost)
	api.HandleFunc("/session/validate", h.Validate).Methods(http.MethodPost)
}

func (h *SessionHandler) view() SessionView {
	user := h.session.CurrentUser()
	return SessionView{Authenticated: user != nil, User: user}
}

// GetSession handles GET /api/v1/session requests.
func (h *SessionHandler) GetSession(w http.ResponseWriter, _ *http.Request) {
	h.writeSuccess(w, http.StatusOK, h.view())
}

// Login handles POST /api/v1/session/login requests.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if !h.decodeBody(w, r, &creds) {
		return
	}

	user, err := h.session.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		h.handleError(w, err, "login")
		return
	}

	h.writeSuccess(w, http.StatusOK, SessionView{Authenticated: true, User: user})
}

// Logout handles POST /api/v1/session/logout requests.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	h.writeSuccess(w, http.StatusOK, SessionView{})
}

// Validate handles POST /api/v1/session/validate requests.
func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	valid := h.session.Validate(r.Context())
	h.writeSuccess(w, http.StatusOK, ValidateResponse{
		Valid:       valid,
		SessionView: h.view(),
	})
}
