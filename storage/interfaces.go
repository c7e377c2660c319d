package storage

import (
	"context"
	"errors"

	"keyword-median/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("storage: not found")

// ListingStore persists title/view-count pairs.
type ListingStore interface {
	DistinctTitles(ctx context.Context) ([]string, error)
	FindListing(ctx context.Context, title string) (*models.Listing, error)
	InsertListing(ctx context.Context, l *models.Listing) error
	ReplaceListing(ctx context.Context, l *models.Listing) error
	AllListings(ctx context.Context) ([]*models.Listing, error)
}

// WordMedianStore persists the derived per-word collection.
type WordMedianStore interface {
	ReplaceWordMedians(ctx context.Context, words []*models.WordMedian) error
	FindWordMedian(ctx context.Context, word string) (*models.WordMedian, error)
}

// Store is the full backend the service runs against.
type Store interface {
	ListingStore
	WordMedianStore
	Ping(ctx context.Context) error
	Close() error
}

// WordMedianWriter is the interface for exporting the derived collection.
type WordMedianWriter interface {
	WriteWordMedians(words []*models.WordMedian) error
	Close() error
}
