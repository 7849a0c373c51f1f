package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/analytics"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/pkg/shortid"
)

var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short id")

const maxRetries = 5

type urlRepository interface {
	Save(ctx context.Context, shortID, originalURL, ownerID string) (*entity.URL, error)
	RetrieveByOwnerAndOriginalURL(ctx context.Context, ownerID, originalURL string) (*entity.URL, error)
	RetrieveByShortID(ctx context.Context, shortID string) (*entity.URL, error)
	AppendVisit(ctx context.Context, shortID string, at time.Time) (*entity.URL, error)
	ListByOwner(ctx context.Context, ownerID string) ([]entity.URL, error)
	ListAll(ctx context.Context) ([]entity.URL, error)
}

type idGenerator interface {
	Generate() (string, error)
}

type Option func(*URLUseCase)

// WithIDGenerator replaces the default nanoid generator.
func WithIDGenerator(g idGenerator) Option {
	return func(uc *URLUseCase) {
		uc.idGen = g
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *URLUseCase) {
		uc.now = now
	}
}

// WithLocation sets the time zone used for calendar dates and hours in analytics.
func WithLocation(loc *time.Location) Option {
	return func(uc *URLUseCase) {
		uc.location = loc
	}
}

func WithRecentClicksLimit(n int) Option {
	return func(uc *URLUseCase) {
		uc.recentLimit = n
	}
}

type URLUseCase struct {
	urlRepo     urlRepository
	idGen       idGenerator
	now         func() time.Time
	location    *time.Location
	recentLimit int
}

func NewURLUseCase(urlRepo urlRepository, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:     urlRepo,
		idGen:       shortid.New(shortid.DefaultLength),
		now:         time.Now,
		location:    time.UTC,
		recentLimit: analytics.DefaultRecentLimit,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// ShortenURL returns the owner's existing record for originalURL, or creates
// a new one under a freshly generated short id. The boolean result reports
// whether the record already existed.
func (uc *URLUseCase) ShortenURL(ctx context.Context, ownerID, originalURL string) (*entity.URL, bool, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if strings.TrimSpace(originalURL) == "" || ownerID == "" {
		return nil, false, fmt.Errorf("%s: %w", op, entity.ErrInvalidInput)
	}

	url, err := uc.findExisting(ctx, ownerID, originalURL)
	if err != nil {
		return nil, false, fmt.Errorf("%s: failed to look up existing url: %w", op, err)
	}
	if url != nil {
		return url, true, nil
	}

	for i := 0; i < maxRetries; i++ {
		shortID, err := uc.idGen.Generate()
		if err != nil {
			return nil, false, fmt.Errorf("%s: failed to generate short id: %w", op, err)
		}

		url, err := uc.urlRepo.Save(ctx, shortID, originalURL, ownerID)
		if err == nil {
			return url, false, nil
		}

		switch {
		case errors.Is(err, entity.ErrShortIDExists):
			continue
		case errors.Is(err, entity.ErrOwnerURLExists):
			// A concurrent request for the same pair won the insert.
			existing, lookupErr := uc.findExisting(ctx, ownerID, originalURL)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("%s: failed to look up existing url: %w", op, lookupErr)
			}
			if existing == nil {
				return nil, false, fmt.Errorf("%s: %w", op, err)
			}

			return existing, true, nil
		default:
			return nil, false, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}
	}

	return nil, false, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

func (uc *URLUseCase) findExisting(ctx context.Context, ownerID, originalURL string) (*entity.URL, error) {
	url, err := uc.urlRepo.RetrieveByOwnerAndOriginalURL(ctx, ownerID, originalURL)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return url, nil
}

// ResolveShortID records a visit and returns the record the short id points to.
// There is no way to resolve without counting the visit.
func (uc *URLUseCase) ResolveShortID(ctx context.Context, shortID string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortID"

	url, err := uc.urlRepo.AppendVisit(ctx, shortID, uc.now())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short id: %w", op, err)
	}

	return url, nil
}

// GetURLStats returns the record with its full visit log.
func (uc *URLUseCase) GetURLStats(ctx context.Context, shortID string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	url, err := uc.urlRepo.RetrieveByShortID(ctx, shortID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

// GetAnalytics returns the record and the analytics report derived from its visit log.
func (uc *URLUseCase) GetAnalytics(ctx context.Context, shortID string) (*entity.URL, *analytics.Report, error) {
	const op = "usecase.URLUseCase.GetAnalytics"

	url, err := uc.urlRepo.RetrieveByShortID(ctx, shortID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to get url: %w", op, err)
	}

	report := analytics.Build(url.Visits, uc.now(), uc.location, uc.recentLimit)

	return url, &report, nil
}

func (uc *URLUseCase) ListOwnerURLs(ctx context.Context, ownerID string) ([]entity.URL, error) {
	const op = "usecase.URLUseCase.ListOwnerURLs"

	urls, err := uc.urlRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list owner urls: %w", op, err)
	}

	return urls, nil
}

func (uc *URLUseCase) ListAllURLs(ctx context.Context) ([]entity.URL, error) {
	const op = "usecase.URLUseCase.ListAllURLs"

	urls, err := uc.urlRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

// ListURLsFor returns every URL for admins and the user's own URLs otherwise.
func (uc *URLUseCase) ListURLsFor(ctx context.Context, user *entity.User) ([]entity.URL, error) {
	if user == nil {
		return nil, fmt.Errorf("usecase.URLUseCase.ListURLsFor: %w", entity.ErrInvalidInput)
	}
	if user.IsAdmin() {
		return uc.ListAllURLs(ctx)
	}

	return uc.ListOwnerURLs(ctx, user.ID)
}
