// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL together with
// its append-only visit log, the User referenced as a URL owner, and the error
// sentinels shared by the usecase and adapter layers.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrShortIDExists is returned when attempting to create a URL with a short id that already exists.
	ErrShortIDExists = errors.New("short id exists")
	// ErrOwnerURLExists is returned when the owner already has a record for the same original URL.
	ErrOwnerURLExists = errors.New("url already shortened by owner")
	// ErrURLNotFound is returned when a URL with the specified short id cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrInvalidInput is returned when the original URL is missing or empty.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable is returned when the persistent store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// URL represents a shortened URL.
type URL struct {
	ID          int64     // ID is the unique identifier of the URL in the store.
	ShortID     string    // ShortID is the generated identifier used to resolve the original URL.
	OriginalURL string    // OriginalURL is the full URL that the short id resolves to.
	OwnerID     string    // OwnerID identifies the user who created the record.
	Owner       *User     // Owner is the resolved owner profile, set only by admin listings.
	Visits      []Visit   // Visits is the visit log in chronological order, set only by single-record lookups.
	URLStats              // URLStats contains statistics derived from the visit log.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was created.
}

// URLStats contains statistics derived from the visit log of a URL.
type URLStats struct {
	VisitCount int64 // VisitCount is the number of recorded visits at query time.
}

// Visit is one resolution of a short id.
type Visit struct {
	Timestamp time.Time
}
