// Package router assembles the HTTP surface of the platform.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medconnect/telehealth-platform/internal/appointments"
	"github.com/medconnect/telehealth-platform/internal/booking"
	"github.com/medconnect/telehealth-platform/internal/chat"
	"github.com/medconnect/telehealth-platform/internal/doctors"
	httpmiddleware "github.com/medconnect/telehealth-platform/internal/http/middleware"
	"github.com/medconnect/telehealth-platform/internal/identity"
	"github.com/medconnect/telehealth-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	DoctorsHandler      *doctors.Handler
	BookingHandler      *booking.Handler
	ChatHandler         *chat.Handler
	MetricsHandler      http.Handler
	AuthSecret          string
	CORSAllowedOrigins  []string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics, and the scheduling provider webhook.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.BookingHandler != nil {
			public.Post("/webhooks/calendly", cfg.BookingHandler.ProviderCallback)
		}
	})

	// Authenticated API.
	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.Auth(cfg.AuthSecret))

		if cfg.AppointmentsHandler != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Get("/", cfg.AppointmentsHandler.List)
				r.Get("/calendar", cfg.AppointmentsHandler.Calendar)
				r.Patch("/{id}/status", cfg.AppointmentsHandler.UpdateStatus)
				r.Post("/{id}/cancel", cfg.AppointmentsHandler.Cancel)
				r.With(httpmiddleware.RequireRole(identity.RoleAdmin)).Delete("/{id}", cfg.AppointmentsHandler.Delete)

				if cfg.ChatHandler != nil {
					r.Get("/{id}/chat", cfg.ChatHandler.Serve)
					r.Get("/{id}/chat/history", cfg.ChatHandler.History)
				}
			})
		}

		if cfg.DoctorsHandler != nil {
			api.Route("/doctors", func(r chi.Router) {
				r.Get("/", cfg.DoctorsHandler.ListActive)
				r.Post("/apply", cfg.DoctorsHandler.Apply)
				r.Get("/{id}", cfg.DoctorsHandler.Get)
				r.Patch("/{id}", cfg.DoctorsHandler.Update)
				r.Post("/{id}/avatar-upload", cfg.DoctorsHandler.AvatarUploadURL)
			})
		}

		if cfg.BookingHandler != nil {
			api.Route("/bookings/sessions", func(r chi.Router) {
				r.Post("/", cfg.BookingHandler.CreateSession)
				r.Get("/{id}", cfg.BookingHandler.GetSession)
				r.Post("/{id}/widget", cfg.BookingHandler.OpenWidget)
				r.Delete("/{id}", cfg.BookingHandler.CloseSession)
			})
		}
	})

	return r
}
