package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"keyword-median/models"
)

// CSVWriter exports the derived word-median collection to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{"word", "median", "occurrences", "views"}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteWordMedians appends one row per word. Views are space separated.
func (c *CSVWriter) WriteWordMedians(words []*models.WordMedian) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, w := range words {
		views := make([]string, len(w.ViewsArray))
		for i, v := range w.ViewsArray {
			views[i] = strconv.FormatInt(v, 10)
		}
		row := []string{
			w.Word,
			strconv.FormatInt(w.Median, 10),
			strconv.Itoa(len(w.ViewsArray)),
			strings.Join(views, " "),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
