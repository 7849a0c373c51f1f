package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/analytics"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type urlUseCase interface {
	ShortenURL(ctx context.Context, ownerID, originalURL string) (*entity.URL, bool, error)
	ResolveShortID(ctx context.Context, shortID string) (*entity.URL, error)
	GetURLStats(ctx context.Context, shortID string) (*entity.URL, error)
	GetAnalytics(ctx context.Context, shortID string) (*entity.URL, *analytics.Report, error)
	ListURLsFor(ctx context.Context, user *entity.User) ([]entity.URL, error)
	ListAllURLs(ctx context.Context) ([]entity.URL, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &urlHandler{
		useCase:  useCase,
		validate: validate,
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, notAuthenticatedResponse)
		return
	}

	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	url, wasExisting, err := h.useCase.ShortenURL(r.Context(), user.ID, req.URL)
	if err != nil {
		respondError(w, r, err)
		return
	}

	urls, err := h.useCase.ListURLsFor(r.Context(), user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusCreated
	if wasExisting {
		status = http.StatusOK
	}

	render.Status(r, status)
	render.JSON(w, r, shortenResponse{
		ShortID:     url.ShortID,
		OriginalURL: url.OriginalURL,
		WasExisting: wasExisting,
		URLs:        toURLResponses(urls),
	})
}

// resolveShortID records the visit and redirects to the destination.
func (h *urlHandler) resolveShortID(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "shortID")

	url, err := h.useCase.ResolveShortID(r.Context(), shortID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "shortID")

	url, err := h.useCase.GetURLStats(r.Context(), shortID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLStatsResponse(url))
}

func (h *urlHandler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "shortID")

	url, report, err := h.useCase.GetAnalytics(r.Context(), shortID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toAnalyticsResponse(url, report))
}

func (h *urlHandler) listURLs(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, notAuthenticatedResponse)
		return
	}

	urls, err := h.useCase.ListURLsFor(r.Context(), user)
	if err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponses(urls))
}

func (h *urlHandler) listAllURLs(w http.ResponseWriter, r *http.Request) {
	urls, err := h.useCase.ListAllURLs(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponses(urls))
}
