// Package memory implements the URL store in process memory. It is meant for
// local runs and tests; nothing survives a restart.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type ownerURLKey struct {
	ownerID     string
	originalURL string
}

type record struct {
	url    entity.URL
	visits []entity.Visit
}

type URLRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byShort map[string]*record
	byOwner map[ownerURLKey]*record
	users   map[string]entity.User
	now     func() time.Time
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		byShort: make(map[string]*record),
		byOwner: make(map[ownerURLKey]*record),
		users:   make(map[string]entity.User),
		now:     time.Now,
	}
}

// SeedUser registers an owner profile returned by ListAll.
func (r *URLRepository) SeedUser(user entity.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.ID] = user
}

// Both uniqueness rules are checked and the record inserted under one lock.
func (r *URLRepository) Save(ctx context.Context, shortID, originalURL, ownerID string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Save"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byShort[shortID]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortIDExists)
	}

	key := ownerURLKey{ownerID: ownerID, originalURL: originalURL}
	if _, ok := r.byOwner[key]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrOwnerURLExists)
	}

	r.nextID++
	rec := &record{
		url: entity.URL{
			ID:          r.nextID,
			ShortID:     shortID,
			OriginalURL: originalURL,
			OwnerID:     ownerID,
			CreatedAt:   r.now(),
		},
	}

	r.byShort[shortID] = rec
	r.byOwner[key] = rec

	return rec.snapshot(false), nil
}

func (r *URLRepository) RetrieveByOwnerAndOriginalURL(ctx context.Context, ownerID, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByOwnerAndOriginalURL"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byOwner[ownerURLKey{ownerID: ownerID, originalURL: originalURL}]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return rec.snapshot(false), nil
}

func (r *URLRepository) RetrieveByShortID(ctx context.Context, shortID string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByShortID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byShort[shortID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return rec.snapshot(true), nil
}

func (r *URLRepository) AppendVisit(ctx context.Context, shortID string, at time.Time) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.AppendVisit"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byShort[shortID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	rec.visits = append(rec.visits, entity.Visit{Timestamp: at})

	return rec.snapshot(false), nil
}

func (r *URLRepository) ListByOwner(ctx context.Context, ownerID string) ([]entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.ListByOwner"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	urls := make([]entity.URL, 0)
	for _, rec := range r.byShort {
		if rec.url.OwnerID == ownerID {
			urls = append(urls, *rec.snapshot(false))
		}
	}
	sortNewestFirst(urls)

	return urls, nil
}

func (r *URLRepository) ListAll(ctx context.Context) ([]entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.ListAll"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	urls := make([]entity.URL, 0, len(r.byShort))
	for _, rec := range r.byShort {
		url := rec.snapshot(false)
		if user, ok := r.users[url.OwnerID]; ok {
			url.Owner = &user
		}
		urls = append(urls, *url)
	}
	sortNewestFirst(urls)

	return urls, nil
}

// snapshot copies the record so callers never share the visit slice.
func (rec *record) snapshot(withVisits bool) *entity.URL {
	url := rec.url
	url.VisitCount = int64(len(rec.visits))
	if withVisits {
		url.Visits = slices.Clone(rec.visits)
		if url.Visits == nil {
			url.Visits = []entity.Visit{}
		}
	}
	return &url
}

func sortNewestFirst(urls []entity.URL) {
	slices.SortFunc(urls, func(a, b entity.URL) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
