package httpd

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"glossa/internal/api"
	"glossa/internal/logging"
)

// authenticate enforces the configured bearer token. An empty token
// disables authentication, matching the loopback-only default bind.
func (s *Server) authenticate(next http.Handler) http.Handler {
	token := strings.TrimSpace(s.cfg.Paths.APIToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		presented, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="glossa"`)
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "invalid or missing bearer token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(wrapped, r)
		s.logger.Debug("request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", wrapped.Status()),
			logging.Int("bytes", wrapped.BytesWritten()),
			logging.Duration(logging.FieldDuration, time.Since(start)))
	})
}
