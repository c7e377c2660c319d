package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"keyword-median/models"
	"keyword-median/storage"
	"keyword-median/utils"
)

// ListingSource returns one page of listings from the marketplace API.
type ListingSource interface {
	FetchPage(ctx context.Context, limit, offset int) ([]models.ListingItem, error)
}

// Fetcher pages through a ListingSource and upserts title/view pairs.
type Fetcher struct {
	source    ListingSource
	store     storage.ListingStore
	logger    *utils.Logger
	pageSize  int
	maxOffset int
}

// NewFetcher creates a Fetcher. The run stops once the offset passes
// maxOffset, on the first short page, or on the first error.
func NewFetcher(source ListingSource, store storage.ListingStore, logger *utils.Logger, pageSize, maxOffset int) *Fetcher {
	return &Fetcher{
		source:    source,
		store:     store,
		logger:    logger,
		pageSize:  pageSize,
		maxOffset: maxOffset,
	}
}

// Run performs one full fetch. Writes made before an error are kept.
func (f *Fetcher) Run(ctx context.Context) (*models.FetchResult, error) {
	result := &models.FetchResult{}

	for offset := 0; ; offset += f.pageSize {
		if offset > f.maxOffset {
			result.StopReason = models.StopOffsetCeiling
			break
		}

		items, err := f.source.FetchPage(ctx, f.pageSize, offset)
		if err != nil {
			return result, fmt.Errorf("fetch: page at offset %d: %w", offset, err)
		}
		result.PagesFetched++

		if err := f.storePage(ctx, items, result); err != nil {
			return result, fmt.Errorf("fetch: store page at offset %d: %w", offset, err)
		}

		f.logger.Debug("[fetch] offset %d done, %d items", offset, len(items))

		if len(items) < f.pageSize {
			result.StopReason = models.StopShortPage
			break
		}
	}

	f.logger.Info("[fetch] %d pages, %s items: %s inserted, %s updated, %s unchanged (%s)",
		result.PagesFetched,
		humanize.Comma(int64(result.ItemsSeen)),
		humanize.Comma(int64(result.Inserted)),
		humanize.Comma(int64(result.Updated)),
		humanize.Comma(int64(result.Unchanged)),
		result.StopReason)
	return result, nil
}

// storePage re-reads the stored titles once per page, then applies each
// item: insert when new, replace when the view count changed.
func (f *Fetcher) storePage(ctx context.Context, items []models.ListingItem, result *models.FetchResult) error {
	titles, err := f.store.DistinctTitles(ctx)
	if err != nil {
		return err
	}
	existing := utils.NewStringSet(titles...)

	for _, item := range items {
		result.ItemsSeen++
		listing := &models.Listing{Title: item.Title, Views: item.Views}

		if existing.Add(item.Title) {
			if err := f.store.InsertListing(ctx, listing); err != nil {
				return err
			}
			result.Inserted++
			continue
		}

		stored, err := f.store.FindListing(ctx, item.Title)
		if errors.Is(err, storage.ErrNotFound) {
			if err := f.store.InsertListing(ctx, listing); err != nil {
				return err
			}
			result.Inserted++
			continue
		}
		if err != nil {
			return err
		}

		if stored.Views == item.Views {
			result.Unchanged++
			continue
		}

		if err := f.store.ReplaceListing(ctx, listing); err != nil {
			return err
		}
		f.logger.Debug("[fetch] %q views %d → %d", item.Title, stored.Views, item.Views)
		result.Updated++
	}
	return nil
}
