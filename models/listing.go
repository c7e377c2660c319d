package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ListingItem is one entry of the listings API "results" array.
// Only the fields the pipeline needs are decoded.
type ListingItem struct {
	ListingID int64  `json:"listing_id"`
	Title     string `json:"title"`
	Views     int64  `json:"views"`
}

// ListingPage is the listings API response envelope.
type ListingPage struct {
	Count   int           `json:"count"`
	Results []ListingItem `json:"results"`
}

// Listing is a stored title/view-count pair.
type Listing struct {
	ID    int64  `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
	Views int64  `db:"views" json:"views"`
}

// WordMedian is the derived per-word record.
type WordMedian struct {
	Word       string `db:"word" json:"word"`
	ViewsArray Views  `db:"views_array" json:"viewsArray"`
	Median     int64  `db:"median" json:"median"`
}

// Views is stored as a JSON array so the same column works on every
// supported SQL backend.
type Views []int64

// Value implements driver.Valuer.
func (v Views) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int64(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (v *Views) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = Views{}
		return nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("views: cannot scan %T", src)
	}

	out := []int64{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("views: decode: %w", err)
	}
	*v = out
	return nil
}

// StopReason says why a fetch run ended.
type StopReason string

const (
	StopOffsetCeiling StopReason = "offset_ceiling"
	StopShortPage     StopReason = "short_page"
)

// FetchResult summarises one fetch run.
type FetchResult struct {
	PagesFetched int        `json:"pagesFetched"`
	ItemsSeen    int        `json:"itemsSeen"`
	Inserted     int        `json:"inserted"`
	Updated      int        `json:"updated"`
	Unchanged    int        `json:"unchanged"`
	StopReason   StopReason `json:"stopReason"`
}

// WordReport holds the console summary of an aggregation run.
type WordReport struct {
	TotalListings int
	DistinctWords int
	TopWords      []*WordMedian
}
