package moviedb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
)

// Stats are the dashboard aggregates over the movie table.
type Stats struct {
	TotalMovies int64 `json:"total_movies"`
	TotalVotes  int64 `json:"total_votes"`
	Available   bool  `json:"available"`
}

// Stats counts movies and sums their votes. A missing database yields
// ErrDatabaseMissing and zero stats.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db, err := s.open(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer func() { _ = db.Close() }()

	var st Stats
	// the table name comes from configuration, never from a request
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&st.TotalMovies); err != nil {
		return Stats{}, errors.Wrap(err, "count movies")
	}
	var votes sql.NullInt64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT SUM(Vote_Count) FROM %s", s.table)).Scan(&votes); err != nil {
		return Stats{}, errors.Wrap(err, "sum votes")
	}
	st.TotalVotes = votes.Int64
	st.Available = true
	return st, nil
}
