package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/gamestore/internal/model"
)

func decodeEnvelope(t *testing.T, body string) model.Envelope[any] {
	t.Helper()

	var env model.Envelope[any]
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("response is not an envelope: %v (%q)", err, body)
	}
	return env
}

// fixedUser always reports the same session user.
type fixedUser struct {
	user *model.User
}

func (f fixedUser) CurrentUser() *model.User { return f.user }

func TestStatusRecorder(t *testing.T) {
	// Arrange
	w := httptest.NewRecorder()
	rec := newStatusRecorder(w)

	// Act
	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusBadRequest)
	_, _ = rec.Write([]byte("hello"))
	_, _ = rec.Write([]byte("!"))

	// Assert
	if rec.status != http.StatusCreated || w.Code != http.StatusCreated {
		t.Errorf("status = %d/%d, want %d", rec.status, w.Code, http.StatusCreated)
	}
	if rec.bytes != 6 {
		t.Errorf("bytes = %d, want 6", rec.bytes)
	}
}

func TestStatusRecorder_WriteDefaultsToOK(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())

	_, _ = rec.Write([]byte("body"))

	if !rec.wroteHeader || rec.status != http.StatusOK {
		t.Errorf("wroteHeader = %v, status = %d", rec.wroteHeader, rec.status)
	}
}

func TestRecovery_WritesEnvelope(t *testing.T) {
	// Arrange
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	// Assert
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	env := decodeEnvelope(t, w.Body.String())
	if env.AllOK || env.Message != msgInternal {
		t.Errorf("envelope = %+v", env)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantKept bool
	}{
		{"generated", "", false},
		{"forwarded", "req-123_a.b", true},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
		{"header injection", "id\r\nX-Admin: 1", false},
		{"spaces", "two words", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var ctxID any
			handler := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				ctxID = r.Context().Value(RequestIDKey)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(w, req)

			// Assert
			got := w.Header().Get(RequestIDHeader)
			if !validRequestID(got) {
				t.Fatalf("response request ID %q is not well formed", got)
			}
			if kept := got == tt.incoming; kept != tt.wantKept {
				t.Errorf("request ID = %q, kept = %v, want kept = %v", got, kept, tt.wantKept)
			}
			if ctxID != got {
				t.Errorf("context request ID = %v, want %q", ctxID, got)
			}
		})
	}
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		users     UserSource
		wantLevel zapcore.Level
		wantUser  string
	}{
		{"signed in", "/api/v1/cart", http.StatusOK, fixedUser{&model.User{ID: "u1"}}, zapcore.InfoLevel, "u1"},
		{"signed out", "/api/v1/cart", http.StatusOK, fixedUser{}, zapcore.InfoLevel, ""},
		{"no session", "/api/v1/cart", http.StatusOK, nil, zapcore.InfoLevel, ""},
		{"health check", "/health", http.StatusOK, nil, zapcore.DebugLevel, ""},
		{"server error", "/api/v1/cart", http.StatusBadGateway, nil, zapcore.ErrorLevel, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			core, logs := observer.New(zapcore.DebugLevel)
			router := mux.NewRouter()
			router.Use(mux.MiddlewareFunc(Logging(zap.New(core), tt.users)))
			router.HandleFunc(tt.path, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			// Act
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			// Assert
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("logged %d entries, want 1", len(entries))
			}
			entry := entries[0]
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entry.Level, tt.wantLevel)
			}
			fields := entry.ContextMap()
			if fields["route"] != tt.path {
				t.Errorf("route = %v, want %s", fields["route"], tt.path)
			}
			if fields["status"] != int64(tt.status) {
				t.Errorf("status = %v, want %d", fields["status"], tt.status)
			}
			user, logged := fields["user_id"]
			if tt.wantUser == "" && logged {
				t.Errorf("user_id = %v, want none", user)
			}
			if tt.wantUser != "" && user != tt.wantUser {
				t.Errorf("user_id = %v, want %s", user, tt.wantUser)
			}
		})
	}
}

func counterValue(t *testing.T, labels ...string) float64 {
	t.Helper()

	var m dto.Metric
	if err := storefrontRequestsTotal.WithLabelValues(labels...).Write(&m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetrics_LabelsByRouteTemplate(t *testing.T) {
	// Arrange
	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(Metrics()))
	router.HandleFunc("/api/v1/cart/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPut)
	labels := []string{http.MethodPut, "/api/v1/cart/items/{id}", "202"}
	before := counterValue(t, labels...)

	// Act
	for _, id := range []string{"g1", "g2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/"+id, nil))
	}

	// Assert
	if got := counterValue(t, labels...) - before; got != 2 {
		t.Errorf("counter increased by %v, want 2", got)
	}
}

func TestRouteTemplate_Unmatched(t *testing.T) {
	if got := routeTemplate(httptest.NewRequest(http.MethodGet, "/anything/123", nil)); got != unmatchedRoute {
		t.Errorf("routeTemplate() = %q, want %q", got, unmatchedRoute)
	}
}

func TestCORS(t *testing.T) {
	policy := func(origins ...string) CORSPolicy {
		return CORSPolicy{
			Origins: origins,
			Methods: []string{http.MethodGet, http.MethodPost},
			Headers: []string{"Content-Type"},
			MaxAge:  10 * time.Minute,
		}
	}

	tests := []struct {
		name        string
		policy      CORSPolicy
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantMethods string
		wantNext    bool
	}{
		{"no origin", policy("http://shop.local"), http.MethodGet, "", false, http.StatusOK, "", "", true},
		{"wildcard", policy("*"), http.MethodGet, "http://shop.local", false, http.StatusOK, "http://shop.local", "", true},
		{"listed origin", policy("http://a.local", "http://shop.local"), http.MethodGet, "http://shop.local", false, http.StatusOK, "http://shop.local", "", true},
		{"unlisted origin", policy("http://shop.local"), http.MethodGet, "http://evil.local", false, http.StatusOK, "", "", true},
		{"preflight", policy("http://shop.local"), http.MethodOptions, "http://shop.local", true, http.StatusNoContent, "http://shop.local", "GET, POST", false},
		{"preflight unlisted", policy("http://shop.local"), http.MethodOptions, "http://evil.local", true, http.StatusForbidden, "", "", false},
		{"plain options", policy("http://shop.local"), http.MethodOptions, "http://shop.local", false, http.StatusOK, "http://shop.local", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			called := false
			handler := CORS(tt.policy)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))
			req := httptest.NewRequest(tt.method, "/api/v1/cart", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(w, req)

			// Assert
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Errorf("Allow-Methods = %q, want %q", got, tt.wantMethods)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
				t.Errorf("Allow-Credentials = %q, want none", got)
			}
			if tt.preflight && tt.wantStatus == http.StatusNoContent {
				if got := w.Header().Get("Access-Control-Max-Age"); got != "600" {
					t.Errorf("Max-Age = %q, want 600", got)
				}
			}
		})
	}
}
