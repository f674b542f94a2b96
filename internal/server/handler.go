package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/binarjoin/syncengine/internal/logger"
)

// Handler wires the sync endpoints and auth endpoints into a chi router.
type Handler struct {
	auth    *AuthService
	records RecordStorage
	log     *logger.Logger
}

func NewHandler(auth *AuthService, records RecordStorage, log *logger.Logger) *Handler {
	log.Info().Msg("http handler created")
	return &Handler{
		auth:    auth,
		records: records,
		log:     log,
	}
}

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withLogging)

	// routes without authorization
	router.Group(func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)
	})

	// sync routes, bearer token required
	router.Group(func(r chi.Router) {
		r.Use(h.withAuth)
		r.Get("/sync/full-backup", h.fullBackup)
		r.Post("/sync/batch", h.batch)
	})

	return router
}
