package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appLogger "github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/logger"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/app/tracer"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/api/customization"
	"github.com/QuangZuy11/TravelBookingSystem-FE-sub003/internal/api/generation"
)

// Config contains dependencies needed for the router setup
type Config struct {
	Logger                 *slog.Logger
	Timeout                time.Duration
	AllowedOrigins         []string
	CustomizationHandler   *customization.HandlerImpl
	GenerationHandler      *generation.HandlerImpl // nil when no model is configured
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter builds the main application router with server-wide middleware applied.
func SetupRouter(cfg *Config) chi.Router {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}

	r := chi.NewMux()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(tracer.HTTPMetrics)
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			if cfg.GenerationHandler != nil {
				cfg.GenerationHandler.Routes(r)
			}
			cfg.CustomizationHandler.Routes(r)
		})
	})

	return r
}
