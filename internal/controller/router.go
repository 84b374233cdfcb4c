package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	if c.metricsHandler != nil {
		r.Handle("/metrics", c.metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		r.Post("/users", c.registerUser)
		r.Route("/movies", func(r chi.Router) {
			r.Get("/", c.getMovies)
			r.Post("/", c.addMovie)
		})
		r.Route("/access-codes", func(r chi.Router) {
			r.Post("/", c.issueAccessCode)
			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", c.validateAccessCode)
				r.Get("/stream", c.resolveStream)
			})
		})
		r.Get("/rooms/{session-code}", c.getRoom)
		r.Route("/ws", func(r chi.Router) {
			r.Get("/stream-manager", c.streamManager)
		})
	})

	return r
}
