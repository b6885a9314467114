package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrWong99/aibridge/pkg/health"
	"github.com/MrWong99/aibridge/pkg/observe"
)

// routes builds the chi router with every gateway endpoint.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	health.New(s.checkers, health.WithCacheTTL(s.cfg.ReadinessCacheTTL)).Register(r)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limitBody)

		r.Get("/providers", s.handleProviders)

		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
		r.Post("/chat/functions", s.handleChatFunctions)

		r.Post("/embeddings", s.handleEmbeddings)
		r.Post("/similarity", s.handleSimilarity)

		r.Post("/vision", s.handleVision)

		r.Route("/collections/{name}", func(r chi.Router) {
			r.Put("/", s.handleCollection)
			r.Put("/records", s.handleUpsert)
			r.Get("/records/{key}", s.handleGetRecord)
			r.Delete("/records/{key}", s.handleDeleteRecord)
			r.Post("/search", s.handleSearch)
		})
	})
	return r
}

// limitBody caps the request body at Config.MaxBodyBytes.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
