package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RequestIDHeader is the header carrying the correlation ID.
const RequestIDHeader = "X-Request-ID"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	anonymousKey contextKey = "anonymous"
)

// Prometheus metrics.
var (
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of backend requests",
		},
		[]string{"method", "status"},
	)

	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	backendBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backend_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

// WithRequestID stores a correlation ID that RequestID forwards instead of
// generating a new one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// Anonymous marks a request that must be sent without credentials. A 401
// on such a request does not clear the session.
func Anonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey, true)
}

func isAnonymous(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey).(bool)
	return v
}

// RequestID sets X-Request-ID on outgoing requests, reusing the ID from the
// context when present.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get(RequestIDHeader) != "" {
				return next.RoundTrip(r)
			}

			id, _ := r.Context().Value(requestIDKey).(string)
			if id == "" {
				id = uuid.New().String()
			}

			r = r.Clone(r.Context())
			r.Header.Set(RequestIDHeader, id)

			return next.RoundTrip(r)
		})
	}
}

// Logging logs every backend call.
func Logging(logger *zap.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("url", r.URL.Redacted()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", r.Header.Get(RequestIDHeader)),
			}

			if err != nil {
				logger.Warn("backend request failed", append(fields, zap.Error(err))...)
				return resp, err
			}

			fields = append(fields, zap.Int("status", resp.StatusCode))
			if resp.StatusCode >= http.StatusInternalServerError {
				logger.Warn("backend request", fields...)
			} else {
				logger.Debug("backend request", fields...)
			}

			return resp, nil
		})
	}
}

// Metrics records Prometheus metrics for backend calls.
func Metrics() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)

			status := "error"
			if err == nil {
				status = strconv.Itoa(resp.StatusCode)
			}

			backendRequestsTotal.WithLabelValues(r.Method, status).Inc()
			backendRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())

			return resp, err
		})
	}
}

// BreakerSettings tunes the circuit breaker.
type BreakerSettings struct {
	Name         string
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings returns the settings used by the storefront.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "backend",
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// CircuitBreaker stops calling the backend after repeated transport failures
// or 5xx answers. While open, calls fail fast with ErrTransport.
func CircuitBreaker(settings BreakerSettings, logger *zap.Logger) Middleware {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			backendBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			// 5xx responses count as failures but are still handed back.
			var passthrough *http.Response

			result, err := cb.Execute(func() (interface{}, error) {
				resp, err := next.RoundTrip(r)
				if err != nil {
					return nil, err
				}
				if resp.StatusCode >= http.StatusInternalServerError {
					passthrough = resp
					return nil, fmt.Errorf("backend status %d", resp.StatusCode)
				}
				return resp, nil
			})

			if passthrough != nil {
				return passthrough, nil
			}

			if err != nil {
				if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
					return nil, &Error{Kind: ErrTransport, Err: err}
				}
				return nil, err
			}

			return result.(*http.Response), nil
		})
	}
}

// Credentials supplies the bearer token and reacts to rejected tokens.
// HandleUnauthorized receives the token the rejected request carried, which
// may no longer be the current one.
type Credentials interface {
	Token() string
	HandleUnauthorized(ctx context.Context, token string)
}

// BearerAuth attaches "Authorization: Bearer <token>" when a token is held.
// A 401 answer to a request that carried a token calls
// HandleUnauthorized with that token before the response is returned.
func BearerAuth(creds Credentials) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if isAnonymous(r.Context()) {
				return next.RoundTrip(r)
			}

			token := creds.Token()
			if token == "" {
				return next.RoundTrip(r)
			}

			r = r.Clone(r.Context())
			r.Header.Set("Authorization", "Bearer "+token)

			resp, err := next.RoundTrip(r)
			if err == nil && resp.StatusCode == http.StatusUnauthorized {
				creds.HandleUnauthorized(r.Context(), token)
			}

			return resp, err
		})
	}
}
