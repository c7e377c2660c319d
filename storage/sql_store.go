package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"keyword-median/models"
)

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite"

	insertBatchSize = 50
)

var _ Store = (*SQLStore)(nil)

// SQLStore persists listings and word medians to PostgreSQL or SQLite.
// The handle is opened once and shared for the process lifetime.
type SQLStore struct {
	db      *sqlx.DB
	dialect string
}

// Open parses uri, connects, runs schema migrations and returns a ready
// store. Supported schemes: postgres://, postgresql:// and sqlite://.
func Open(ctx context.Context, uri string) (*SQLStore, error) {
	driver, dsn, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	if driver == dialectSQLite {
		// single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	attempts := 1
	if driver == dialectPostgres {
		attempts = 10
	}
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				_ = db.Close()
				return nil, fmt.Errorf("store: ping: %w", ctx.Err())
			case <-time.After(2 * time.Second):
			}
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping failed after retries: %w", err)
	}

	s := &SQLStore{db: db, dialect: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func parseURI(uri string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return dialectPostgres, uri, nil
	case strings.HasPrefix(uri, "sqlite://"):
		path := strings.TrimPrefix(uri, "sqlite://")
		if path == "" {
			return "", "", errors.New("store: sqlite uri has no path")
		}
		return dialectSQLite, path, nil
	default:
		return "", "", fmt.Errorf("store: unsupported uri scheme in %q", redact(uri))
	}
}

// redact drops credentials from a URI before it reaches an error message.
func redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}

func (s *SQLStore) migrate(ctx context.Context) error {
	var stmts []string
	switch s.dialect {
	case dialectPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS listings (
				id    BIGSERIAL PRIMARY KEY,
				title TEXT      NOT NULL,
				views BIGINT    NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS word_medians (
				word        TEXT   PRIMARY KEY,
				views_array TEXT   NOT NULL,
				median      BIGINT NOT NULL
			)`,
		}
	default:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS listings (
				id    INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT    NOT NULL,
				views INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS word_medians (
				word        TEXT    PRIMARY KEY,
				views_array TEXT    NOT NULL,
				median      INTEGER NOT NULL
			)`,
		}
	}
	stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_listings_title ON listings(title)`)

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the store connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DistinctTitles returns every stored title once.
func (s *SQLStore) DistinctTitles(ctx context.Context) ([]string, error) {
	var titles []string
	if err := s.db.SelectContext(ctx, &titles, `SELECT DISTINCT title FROM listings`); err != nil {
		return nil, fmt.Errorf("store: distinct titles: %w", err)
	}
	return titles, nil
}

// FindListing returns the oldest listing stored under title.
func (s *SQLStore) FindListing(ctx context.Context, title string) (*models.Listing, error) {
	l := &models.Listing{}
	err := s.db.GetContext(ctx, l,
		s.db.Rebind(`SELECT id, title, views FROM listings WHERE title = ? ORDER BY id LIMIT 1`), title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find listing: %w", err)
	}
	return l, nil
}

// InsertListing stores a new listing.
func (s *SQLStore) InsertListing(ctx context.Context, l *models.Listing) error {
	if _, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO listings (title, views) VALUES (?, ?)`), l.Title, l.Views); err != nil {
		return fmt.Errorf("store: insert listing: %w", err)
	}
	return nil
}

// ReplaceListing deletes every listing with l.Title and inserts l, in one
// transaction.
func (s *SQLStore) ReplaceListing(ctx context.Context, l *models.Listing) error {
	return s.inTx(ctx, "replace listing", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM listings WHERE title = ?`), l.Title); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO listings (title, views) VALUES (?, ?)`), l.Title, l.Views)
		return err
	})
}

// AllListings returns every listing in insertion order.
func (s *SQLStore) AllListings(ctx context.Context) ([]*models.Listing, error) {
	var listings []*models.Listing
	if err := s.db.SelectContext(ctx, &listings, `SELECT id, title, views FROM listings ORDER BY id`); err != nil {
		return nil, fmt.Errorf("store: fetch all: %w", err)
	}
	return listings, nil
}

// ReplaceWordMedians swaps the whole derived collection for words in one
// transaction.
func (s *SQLStore) ReplaceWordMedians(ctx context.Context, words []*models.WordMedian) error {
	return s.inTx(ctx, "replace word medians", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM word_medians`); err != nil {
			return err
		}
		for i := 0; i < len(words); i += insertBatchSize {
			end := i + insertBatchSize
			if end > len(words) {
				end = len(words)
			}
			if err := insertWordBatch(ctx, tx, words[i:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertWordBatch(ctx context.Context, tx *sqlx.Tx, batch []*models.WordMedian) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*3)

	for _, w := range batch {
		valueStrings = append(valueStrings, "(?, ?, ?)")
		valueArgs = append(valueArgs, w.Word, w.ViewsArray, w.Median)
	}

	query := fmt.Sprintf(`INSERT INTO word_medians (word, views_array, median) VALUES %s`,
		strings.Join(valueStrings, ","))
	_, err := tx.ExecContext(ctx, tx.Rebind(query), valueArgs...)
	return err
}

// FindWordMedian returns the derived record for word.
func (s *SQLStore) FindWordMedian(ctx context.Context, word string) (*models.WordMedian, error) {
	w := &models.WordMedian{}
	err := s.db.GetContext(ctx, w,
		s.db.Rebind(`SELECT word, views_array, median FROM word_medians WHERE word = ?`), word)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find word median: %w", err)
	}
	return w, nil
}

func (s *SQLStore) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: %s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store: %s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: %s: commit: %w", op, err)
	}
	return nil
}
