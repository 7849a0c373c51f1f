// Package http provides the HTTP delivery layer for the URL shortener service:
// routing, session authentication, request validation and response formatting.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"
)

const (
	defaultCookieName = "uid"
	swaggerSpecPath   = "./docs/swagger.yml"
)

type routerOptions struct {
	allowedOrigins []string
	cookieName     string
	limiter        *rate.Limiter
}

type RouterOption func(*routerOptions)

func WithAllowedOrigins(origins ...string) RouterOption {
	return func(o *routerOptions) {
		o.allowedOrigins = origins
	}
}

// WithCookieName sets the cookie the session token is read from.
func WithCookieName(name string) RouterOption {
	return func(o *routerOptions) {
		if name != "" {
			o.cookieName = name
		}
	}
}

// WithRateLimit guards URL creation with a token bucket refilled at rps with
// the given burst.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(o *routerOptions) {
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewRouter initializes the chi router with middleware and routes for the URL shortener API.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, verifier tokenVerifier, opts ...RouterOption) *chi.Mux {
	o := routerOptions{
		allowedOrigins: []string{"http://localhost:5173"},
		cookieName:     defaultCookieName,
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   o.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer)

	r.Get("/health", handleHealth)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, swaggerSpecPath)
	})

	h := newURLHandler(urlUseCase, validator.New())
	authenticated := requireUser(verifier, o.cookieName)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", handlePing)

		r.Route("/url", func(r chi.Router) {
			r.Get("/{shortID}", h.resolveShortID)

			r.Group(func(r chi.Router) {
				r.Use(authenticated)

				r.With(rateLimit(o.limiter)).Post("/", h.shortenURL)
				r.Get("/analytics/{shortID}", h.getURLStats)
				r.Get("/analytics/detailed/{shortID}", h.getAnalytics)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Get("/urls", h.listURLs)
			r.Get("/auth/me", handleMe)
			r.With(requireAdmin).Get("/admin/urls", h.listAllURLs)
		})
	})

	return r
}
