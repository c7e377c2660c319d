package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"keyword-median/models"
	"keyword-median/storage"
	"keyword-median/utils"
)

// Aggregate derives one WordMedian per distinct word across all listing
// titles. Words keep the order of their first appearance and each
// ViewsArray keeps the order in which listings were encountered.
func Aggregate(listings []*models.Listing) []*models.WordMedian {
	index := make(map[string]*models.WordMedian)
	var words []*models.WordMedian

	for _, l := range listings {
		for _, word := range ExtractWords(l.Title) {
			wm, ok := index[word]
			if !ok {
				wm = &models.WordMedian{Word: word, ViewsArray: models.Views{}}
				index[word] = wm
				words = append(words, wm)
			}
			wm.ViewsArray = append(wm.ViewsArray, l.Views)
		}
	}

	for _, wm := range words {
		wm.Median = Median(wm.ViewsArray)
	}
	return words
}

// Aggregator rebuilds the word-median index from the stored listings.
type Aggregator struct {
	listings storage.ListingStore
	words    storage.WordMedianStore
	logger   *utils.Logger
}

// NewAggregator creates an Aggregator over the given stores.
func NewAggregator(listings storage.ListingStore, words storage.WordMedianStore, logger *utils.Logger) *Aggregator {
	return &Aggregator{listings: listings, words: words, logger: logger}
}

// Run reads every listing, recomputes the word medians and replaces the
// derived collection. It returns the listings it read.
func (a *Aggregator) Run(ctx context.Context) ([]*models.Listing, []*models.WordMedian, error) {
	listings, err := a.listings.AllListings(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate: read listings: %w", err)
	}

	words := Aggregate(listings)
	if err := a.words.ReplaceWordMedians(ctx, words); err != nil {
		return nil, nil, fmt.Errorf("aggregate: store word medians: %w", err)
	}

	a.logger.Info("[aggregate] %s listings → %s distinct words",
		humanize.Comma(int64(len(listings))), humanize.Comma(int64(len(words))))
	return listings, words, nil
}

// Summarize builds a console report with the n most frequent words.
func (a *Aggregator) Summarize(listings []*models.Listing, words []*models.WordMedian, n int) *models.WordReport {
	report := &models.WordReport{
		TotalListings: len(listings),
		DistinctWords: len(words),
	}

	ranked := make([]*models.WordMedian, len(words))
	copy(ranked, words)
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].ViewsArray) > len(ranked[j].ViewsArray)
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	report.TopWords = ranked
	return report
}

// Print writes the report to stdout.
func (a *Aggregator) Print(r *models.WordReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  KEYWORD MEDIAN VIEWS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Stored listings : \033[1m%s\033[0m\n", humanize.Comma(int64(r.TotalListings)))
	fmt.Printf("  Distinct words  : \033[1m%s\033[0m\n", humanize.Comma(int64(r.DistinctWords)))
	fmt.Println()

	fmt.Printf("\033[1;33m  Most Frequent Words\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.TopWords) == 0 {
		fmt.Printf("  No words indexed\n")
	} else {
		for i, w := range r.TopWords {
			fmt.Printf("  \033[1m%2d.\033[0m %-28s %6d titles  median \033[1;32m%s\033[0m\n",
				i+1, truncate(w.Word, 26), len(w.ViewsArray), humanize.Comma(w.Median))
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
