package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type tokenVerifier interface {
	Verify(tokenString string) (*entity.User, error)
}

type userCtxKey struct{}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, user *entity.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// UserFromContext returns the user stored by the authentication middleware.
func UserFromContext(ctx context.Context) (*entity.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(*entity.User)
	return user, ok && user != nil
}

// sessionToken reads the token from the session cookie, falling back to a
// bearer Authorization header.
func sessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}

	return ""
}

func requireUser(verifier tokenVerifier, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r, cookieName)
			if token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, notAuthenticatedResponse)
				return
			}

			user, err := verifier.Verify(token)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, invalidTokenResponse)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// requireAdmin must run after requireUser.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin() {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, accessDeniedResponse)
			return
		}

		next.ServeHTTP(w, r)
	})
}
