package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/auth"
	"github.com/vyrodovalexey/gamestore/internal/cart"
	"github.com/vyrodovalexey/gamestore/internal/catalog"
	"github.com/vyrodovalexey/gamestore/internal/checkout"
	"github.com/vyrodovalexey/gamestore/internal/kv"
	"github.com/vyrodovalexey/gamestore/internal/middleware"
	"github.com/vyrodovalexey/gamestore/internal/model"
	"github.com/vyrodovalexey/gamestore/internal/session"
	"github.com/vyrodovalexey/gamestore/internal/upload"
)

const testToken = "tok-123"

// harness is the companion service wired against a fake shop backend.
type harness struct {
	router    *mux.Router
	cart      *cart.Store
	session   *session.Store
	ws        *WebSocketHandler
	lastAuth  atomic.Value
	backendCalls atomic.Int32
}

// newHarness starts a fake backend with the login and verify endpoints plus
// whatever setup registers, and builds every handler on top of it.
func newHarness(t *testing.T, setup func(r *mux.Router)) *harness {
	t.Helper()

	h := &harness{}
	h.lastAuth.Store("")

	backend := mux.NewRouter()
	backend.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.backendCalls.Add(1)
			h.lastAuth.Store(r.Header.Get("Authorization"))
			next.ServeHTTP(w, r)
		})
	})
	backend.HandleFunc("/users/login", func(w http.ResponseWriter, r *http.Request) {
		var creds model.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			respond(w, http.StatusUnauthorized, model.NewErrorEnvelope("Credenciales inválidas"))
			return
		}
		respond(w, http.StatusOK, map[string]any{
			"token": testToken,
			"user":  map[string]any{"_id": "u1", "email": creds.Email, "role": "admin"},
		})
	}).Methods(http.MethodPost)
	if setup != nil {
		setup(backend)
	}

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	logger := zap.NewNop()

	client, err := apiclient.New(srv.URL, 5*time.Second, logger)
	if err != nil {
		t.Fatalf("apiclient.New() error = %v", err)
	}

	h.session = session.New(ctx, kv.NewMemoryBridge(), catalog.NewAuth(client), logger)
	client.Use(apiclient.BearerAuth(h.session))
	h.cart = cart.New(ctx, kv.NewMemoryBridge(), logger)

	games := catalog.NewGames(client)
	products := catalog.NewProducts(client)
	home := catalog.NewHome(client)
	storefront := catalog.NewStorefront(games, products, logger)
	uploader := upload.New(client, upload.Options{MaxBytes: 1 << 10}, logger)

	h.router = mux.NewRouter()
	NewHealthHandler(logger).RegisterRoutes(h.router)

	api := h.router.PathPrefix("/api/v1").Subrouter()
	NewCartHandler(h.cart, checkout.NewService(h.cart, "", logger), logger).RegisterRoutes(api)
	NewSessionHandler(h.session, logger).RegisterRoutes(api)
	NewCatalogHandler(games, products, home, storefront, 2, logger).RegisterRoutes(api)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(mux.MiddlewareFunc(middleware.Auth(auth.NewSessionAuthenticator(h.session), logger)))
	NewAdminHandler(games, products, home, uploader, logger).RegisterRoutes(admin)

	h.ws = NewWebSocketHandler(h.cart, h.session, logger)
	h.ws.RegisterRoutes(h.router)
	t.Cleanup(h.ws.CloseAllConnections)

	return h
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any) {
	respond(w, http.StatusOK, model.NewSuccessEnvelope(data))
}

// do sends a request through the router and decodes the envelope. A string
// body is sent as is; anything else is JSON encoded.
func (h *harness) do(t *testing.T, method, path string, body any) (int, model.Envelope[json.RawMessage]) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	return w.Code, decodeEnvelope(t, w.Body.Bytes())
}

func decodeEnvelope(t *testing.T, body []byte) model.Envelope[json.RawMessage] {
	t.Helper()

	var env model.Envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("response is not an envelope: %v (%q)", err, body)
	}
	return env
}

func decodeData[T any](t *testing.T, env model.Envelope[json.RawMessage]) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decoding data %s: %v", env.Data, err)
	}
	return v
}

func (h *harness) login(t *testing.T) {
	t.Helper()

	status, env := h.do(t, http.MethodPost, "/api/v1/session/login",
		model.Credentials{Email: "admin@princegaming.co", Password: "secret"})
	if status != http.StatusOK {
		t.Fatalf("login status = %d (%s)", status, env.Message)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		path       string
		wantStatus string
	}{
		{"/health", "healthy"},
		{"/ready", "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			// Arrange
			h := newHarness(t, nil)

			// Act
			status, env := h.do(t, http.MethodGet, tt.path, nil)

			// Assert
			if status != http.StatusOK || !env.AllOK {
				t.Fatalf("status = %d, allOK = %v", status, env.AllOK)
			}
			got := decodeData[map[string]string](t, env)
			if got["status"] != tt.wantStatus {
				t.Errorf("status field = %q, want %q", got["status"], tt.wantStatus)
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apiclient.Validation("x"), http.StatusBadRequest},
		{"unauthorized", &apiclient.Error{Kind: apiclient.ErrUnauthorized, Status: 401}, http.StatusUnauthorized},
		{"business 404", &apiclient.Error{Kind: apiclient.ErrBusiness, Status: 404}, http.StatusNotFound},
		{"business in 200 envelope", &apiclient.Error{Kind: apiclient.ErrBusiness, Status: 200}, http.StatusUnprocessableEntity},
		{"business in allOK=false envelope", &apiclient.Error{Kind: apiclient.ErrBusiness, Message: "Sin stock"}, http.StatusUnprocessableEntity},
		{"business 500", &apiclient.Error{Kind: apiclient.ErrBusiness, Status: 500}, http.StatusBadGateway},
		{"wrapped business 409", fmt.Errorf("creating: %w", &apiclient.Error{Kind: apiclient.ErrBusiness, Status: 409}), http.StatusConflict},
		{"transport", &apiclient.Error{Kind: apiclient.ErrTransport}, http.StatusBadGateway},
		{"unclassified", errors.New("boom"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCartHandler_Flow(t *testing.T) {
	// Arrange
	h := newHarness(t, nil)
	halo := model.CartCandidate{ID: "g1", Name: "Halo", Price: 100, Type: model.ItemTypeGame}
	pad := model.CartCandidate{ID: "a1", Name: "Control", Price: 50, Type: model.ItemTypeAccessory}

	// Act
	h.do(t, http.MethodPost, "/api/v1/cart/items", halo)
	h.do(t, http.MethodPost, "/api/v1/cart/items", halo)
	_, env := h.do(t, http.MethodPost, "/api/v1/cart/items", pad)

	// Assert
	state := decodeData[model.CartState](t, env)
	if state.Total != 250 || state.ItemCount != 3 || len(state.Items) != 2 {
		t.Fatalf("state after adds = %+v", state)
	}

	_, env = h.do(t, http.MethodPut, "/api/v1/cart/items/g1", map[string]int{"quantity": 5})
	if state = decodeData[model.CartState](t, env); state.Total != 550 {
		t.Errorf("total after quantity change = %v, want 550", state.Total)
	}

	_, env = h.do(t, http.MethodPut, "/api/v1/cart/items/a1", map[string]int{"quantity": 0})
	if state = decodeData[model.CartState](t, env); len(state.Items) != 1 {
		t.Errorf("zero quantity should remove the item: %+v", state.Items)
	}

	_, env = h.do(t, http.MethodPost, "/api/v1/cart/toggle", nil)
	if state = decodeData[model.CartState](t, env); !state.Visible {
		t.Error("toggle should show the cart")
	}

	_, env = h.do(t, http.MethodDelete, "/api/v1/cart/items/g1", nil)
	if state = decodeData[model.CartState](t, env); len(state.Items) != 0 || state.Total != 0 {
		t.Errorf("state after remove = %+v", state)
	}

	h.do(t, http.MethodPost, "/api/v1/cart/items", pad)
	_, env = h.do(t, http.MethodDelete, "/api/v1/cart", nil)
	if state = decodeData[model.CartState](t, env); len(state.Items) != 0 {
		t.Errorf("state after clear = %+v", state)
	}

	_, env = h.do(t, http.MethodPost, "/api/v1/cart/hide", nil)
	if state = decodeData[model.CartState](t, env); state.Visible {
		t.Error("hide should hide the cart")
	}
}

func TestCartHandler_Validation(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		body        any
		wantMessage string
	}{
		{"malformed body", http.MethodPost, "/api/v1/cart/items", "{", msgInvalidBody},
		{"unknown type", http.MethodPost, "/api/v1/cart/items",
			model.CartCandidate{ID: "x", Price: 1, Type: "ropa"}, model.ErrInvalidItemType.Error()},
		{"missing id", http.MethodPost, "/api/v1/cart/items",
			model.CartCandidate{Price: 1, Type: model.ItemTypeGame}, model.ErrEmptyItemID.Error()},
		{"missing quantity", http.MethodPut, "/api/v1/cart/items/g1", map[string]int{}, msgMissingQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			h := newHarness(t, nil)

			// Act
			status, env := h.do(t, tt.method, tt.path, tt.body)

			// Assert
			if status != http.StatusBadRequest || env.AllOK {
				t.Errorf("status = %d, allOK = %v", status, env.AllOK)
			}
			if env.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", env.Message, tt.wantMessage)
			}
			if len(h.cart.Items()) != 0 {
				t.Error("rejected request changed the cart")
			}
		})
	}
}

func TestCartHandler_Checkout(t *testing.T) {
	// Arrange
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/api/v1/cart/items",
		model.CartCandidate{ID: "g1", Name: "Halo", Price: 250000, Type: model.ItemTypeGame})

	// Act
	status, env := h.do(t, http.MethodPost, "/api/v1/cart/checkout", nil)

	// Assert
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s)", status, env.Message)
	}
	result := decodeData[checkout.Result](t, env)
	if !strings.HasPrefix(result.URL, "https://wa.me/"+checkout.DefaultPhone) || result.Total != 250000 {
		t.Errorf("result = %+v", result)
	}
	if len(h.cart.Items()) != 0 {
		t.Error("checkout should clear the cart")
	}

	status, env = h.do(t, http.MethodPost, "/api/v1/cart/checkout", nil)
	if status != http.StatusBadRequest || env.Message != "Tu compra está vacía" {
		t.Errorf("empty checkout = %d %q", status, env.Message)
	}
}

func TestSessionHandler_LoginLogout(t *testing.T) {
	// Arrange
	h := newHarness(t, nil)

	// Act
	h.login(t)
	_, env := h.do(t, http.MethodGet, "/api/v1/session", nil)

	// Assert
	view := decodeData[SessionView](t, env)
	if !view.Authenticated || view.User == nil || view.User.ID != "u1" {
		t.Fatalf("session after login = %+v", view)
	}
	if h.session.Token() != testToken {
		t.Errorf("token = %q", h.session.Token())
	}

	_, env = h.do(t, http.MethodPost, "/api/v1/session/logout", nil)
	if view = decodeData[SessionView](t, env); view.Authenticated || view.User != nil {
		t.Errorf("session after logout = %+v", view)
	}
	if h.session.IsAuthenticated() {
		t.Error("store still authenticated after logout")
	}
}

func TestSessionHandler_LoginFailures(t *testing.T) {
	tests := []struct {
		name         string
		body         any
		wantStatus   int
		wantMessage  string
		wantBackends int32
	}{
		{
			name:         "wrong password",
			body:         model.Credentials{Email: "a@b.co", Password: "nope"},
			wantStatus:   http.StatusUnauthorized,
			wantMessage:  "Credenciales inválidas",
			wantBackends: 1,
		},
		{
			name:         "missing fields",
			body:         model.Credentials{Email: "  "},
			wantStatus:   http.StatusBadRequest,
			wantMessage:  "Email y contraseña son requeridos",
			wantBackends: 0,
		},
		{
			name:         "malformed body",
			body:         "not json",
			wantStatus:   http.StatusBadRequest,
			wantMessage:  msgInvalidBody,
			wantBackends: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			h := newHarness(t, nil)

			// Act
			status, env := h.do(t, http.MethodPost, "/api/v1/session/login", tt.body)

			// Assert
			if status != tt.wantStatus || env.Message != tt.wantMessage {
				t.Errorf("login = %d %q, want %d %q", status, env.Message, tt.wantStatus, tt.wantMessage)
			}
			if got := h.backendCalls.Load(); got != tt.wantBackends {
				t.Errorf("backend calls = %d, want %d", got, tt.wantBackends)
			}
			if h.session.IsAuthenticated() {
				t.Error("failed login authenticated the session")
			}
		})
	}
}

func TestSessionHandler_Validate(t *testing.T) {
	tests := []struct {
		name       string
		verify     http.HandlerFunc
		wantValid  bool
		wantSignIn bool
	}{
		{
			name: "token accepted",
			verify: func(w http.ResponseWriter, _ *http.Request) {
				ok(w, map[string]any{"user": map[string]any{"id": "u1", "email": "admin@princegaming.co"}})
			},
			wantValid:  true,
			wantSignIn: true,
		},
		{
			name: "token rejected",
			verify: func(w http.ResponseWriter, _ *http.Request) {
				respond(w, http.StatusUnauthorized, model.NewErrorEnvelope("Token inválido"))
			},
			wantValid:  false,
			wantSignIn: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			h := newHarness(t, func(r *mux.Router) {
				r.HandleFunc("/users/verify", tt.verify).Methods(http.MethodGet)
			})
			h.login(t)

			// Act
			status, env := h.do(t, http.MethodPost, "/api/v1/session/validate", nil)

			// Assert
			if status != http.StatusOK {
				t.Fatalf("status = %d", status)
			}
			got := decodeData[ValidateResponse](t, env)
			if got.Valid != tt.wantValid || got.Authenticated != tt.wantSignIn {
				t.Errorf("validate = %+v", got)
			}
			if h.lastAuth.Load() != "Bearer "+testToken {
				t.Errorf("verify sent Authorization %q", h.lastAuth.Load())
			}
		})
	}
}
