package services

import (
	"context"
	"errors"
	"fmt"

	"keyword-median/storage"
)

// ErrWordNotFound means the word has no entry in the derived index.
var ErrWordNotFound = errors.New("word not found")

// Lookup answers median-views queries from the derived index.
type Lookup struct {
	words storage.WordMedianStore
}

func NewLookup(words storage.WordMedianStore) *Lookup {
	return &Lookup{words: words}
}

// Median returns the stored median for word.
func (l *Lookup) Median(ctx context.Context, word string) (int64, error) {
	wm, err := l.words.FindWordMedian(ctx, word)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, ErrWordNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup %q: %w", word, err)
	}
	return wm.Median, nil
}
