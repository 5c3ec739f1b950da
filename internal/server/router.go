package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tax-rag/internal/api"
	"tax-rag/internal/api/handlers"
	"tax-rag/internal/api/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string
	RAGHandler     *handlers.RAGHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/", cfg.RAGHandler.Ask)
	r.Get("/populate", cfg.RAGHandler.Populate)

	return r
}
