package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/translation", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/", s.handleTranslate)
		r.Get("/history", s.handleHistory)
		r.Get("/stats", s.handleStats)

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.handleCacheStats)
			r.Delete("/", s.handleInvalidateCacheByURL)
			r.Delete("/{contentHash}", s.handleInvalidateCache)
		})

		r.Get("/{jobID}", s.handleJob)
		r.Delete("/{jobID}", s.handleCancel)
		r.Post("/{jobID}/feedback", s.handleFeedback)
	})

	return r
}
