package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/auth"
)

const (
	msgSignInRequired = "Inicia sesión para continuar"
	msgForbidden      = "No tienes permisos para esta acción"
)

// Auth returns a middleware that only lets requests through while the
// authenticator accepts them. CORS preflight requests are not checked.
func Auth(
	authenticator auth.Authenticator,
	logger *zap.Logger,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(
			w http.ResponseWriter,
			r *http.Request,
		) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			info, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Warn("authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeAuthError(w, err)
				return
			}

			logger.Debug("authentication successful",
				zap.String("subject", info.Subject),
				zap.String("method", string(info.Method)),
				zap.String("path", r.URL.Path),
			)

			ctx := auth.WithAuthInfo(r.Context(), info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes a 401 or 403 envelope response for err.
func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrForbidden) {
		writeEnvelope(w, http.StatusForbidden, msgForbidden)
		return
	}

	w.Header().Set("WWW-Authenticate", `Bearer realm="storefront"`)
	writeEnvelope(w, http.StatusUnauthorized, msgSignInRequired)
}
