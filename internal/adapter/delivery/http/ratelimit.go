package http

import (
	"net/http"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"
)

// rateLimit rejects requests once the shared token bucket is empty.
// A nil limiter disables limiting.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, tooManyRequestsResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
