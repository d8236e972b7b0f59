package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/meme-recommendation-service/internal/handler"
)

func Setup(h *handler.Handler, timeout time.Duration, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	// Routes
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/recommendations", h.GetRecommendations)
		r.Get("/recommendations/collaborative", h.GetCollaborative)
		r.Get("/recommendations/collaborative/stats", h.GetCollaborativeStats)
		r.Post("/strategy", h.AdjustStrategy)
	})
	r.Get("/recommendations/stats", h.GetAlgorithmStats)
	r.Get("/recommendations/batch", h.GetBatchRecommendations)
	r.Post("/likes/toggle", h.ToggleLike)

	r.Get("/health", healthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
