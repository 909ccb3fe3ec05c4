package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solhealth/match-booking/internal/http/handlers"
	httpmiddleware "github.com/solhealth/match-booking/internal/http/middleware"
	"github.com/solhealth/match-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	MatchHandler        *handlers.MatchHandler
	SlotsHandler        *handlers.SlotsHandler
	ConfirmationHandler *handlers.ConfirmationHandler
	HealthHandler       http.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// BookingLimiter throttles POST /api/match/book per client IP. Nil
	// disables throttling.
	BookingLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	health := cfg.HealthHandler
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	r.Method(http.MethodGet, "/health", health)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.MatchHandler != nil {
			api.Get("/match", cfg.MatchHandler.GetMatches)
			book := api.With()
			if cfg.BookingLimiter != nil {
				book = api.With(httpmiddleware.RateLimit(cfg.BookingLimiter, httpmiddleware.ClientIP))
			}
			book.Post("/match/book", cfg.MatchHandler.BookAppointment)
		}
		if cfg.SlotsHandler != nil {
			api.Get("/therapists/slots", cfg.SlotsHandler.GetSlots)
		}
		if cfg.ConfirmationHandler != nil {
			api.Get("/booking/confirmed", cfg.ConfirmationHandler.GetConfirmation)
		}
	})

	return r
}
