package moviedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	DefaultMaxRows = 20
	DefaultTable   = "movies"
)

// ErrDatabaseMissing is returned when the database file does not exist.
var ErrDatabaseMissing = errors.New("movie database not found")

// Store runs read-only statements against the movie database. It holds no
// connection; each call opens and closes its own.
type Store struct {
	path    string
	table   string
	maxRows int
}

type Option func(*Store)

// WithMaxRows sets how many rows a query result keeps before truncating.
func WithMaxRows(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

// WithTable sets the table the aggregates are computed over.
func WithTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

func NewStore(path string, opts ...Option) *Store {
	s := &Store{path: path, table: DefaultTable, maxRows: DefaultMaxRows}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Path() string { return s.path }

func (s *Store) MaxRows() int { return s.maxRows }

// Exists reports whether the database file is present.
func (s *Store) Exists() bool {
	st, err := os.Stat(s.path)
	return err == nil && !st.IsDir()
}

// DSN is the read-only connection string for path.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?mode=ro&_query_only=true", path)
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	if !s.Exists() {
		return nil, errors.Wrap(ErrDatabaseMissing, s.path)
	}
	db, err := sql.Open("sqlite3", DSN(s.path))
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	return db, nil
}
