package moviedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newFixtureDB(t *testing.T, movies int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(`CREATE TABLE movies (
		Release_Date TEXT, Title TEXT, Overview TEXT, Popularity REAL,
		Vote_Count INTEGER, Vote_Average REAL, Original_Language TEXT,
		Genre TEXT, Poster_Url TEXT)`)
	require.NoError(t, err)
	for i := 1; i <= movies; i++ {
		_, err = db.Exec(`INSERT INTO movies VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			"2010-07-16", fmt.Sprintf("Movie %d", i), "plot", 1.5*float64(i),
			i*10, 7.5, "en", `[{"id": 28, "name": "Action"}]`, fmt.Sprintf("https://img/%d.jpg", i))
		require.NoError(t, err)
	}
	return path
}

func TestCheckQuery(t *testing.T) {
	for _, q := range []string{
		"DROP TABLE movies",
		"delete from movies",
		"SELECT * FROM movies; UPDATE movies SET Title='x'",
		"SELECT last_updated FROM movies",
		"sElEcT 1; ShUtDoWn",
	} {
		kw, ok := CheckQuery(q)
		require.False(t, ok, q)
		require.NotEmpty(t, kw, q)
		require.False(t, IsQuerySafe(q), q)
	}

	kw, ok := CheckQuery("SELECT Title FROM movies WHERE Vote_Average > 8")
	require.True(t, ok)
	require.Empty(t, kw)
}

func TestQuery_DeniedNeverTouchesDatabase(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "movies.db"))
	out := s.Query(context.Background(), "DROP TABLE movies")
	require.JSONEq(t, `{"error":"Query is not allowed. Only read-only SELECT statements are permitted."}`, out)
}

func TestQuery_MissingDatabase(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "movies.db"))
	out := s.Query(context.Background(), "SELECT COUNT(*) FROM movies")
	require.JSONEq(t, `{"error":"Database file 'movies.db' not found. Please run the dataset setup first."}`, out)
}

func TestQuery_Records(t *testing.T) {
	s := NewStore(newFixtureDB(t, 3))
	out := s.Query(context.Background(), "SELECT Title, Vote_Count FROM movies ORDER BY Vote_Count DESC")
	require.Equal(t, `[{"Title":"Movie 3","Vote_Count":30},{"Title":"Movie 2","Vote_Count":20},{"Title":"Movie 1","Vote_Count":10}]`, out)

	out = s.Query(context.Background(), "SELECT COUNT(*) FROM movies")
	require.Equal(t, `[{"COUNT(*)":3}]`, out)
}

func TestQuery_KeepsURLsUnescaped(t *testing.T) {
	s := NewStore(newFixtureDB(t, 1))
	out := s.Query(context.Background(), "SELECT Poster_Url, Genre FROM movies")
	require.Contains(t, out, `"https://img/1.jpg"`)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Equal(t, `[{"id": 28, "name": "Action"}]`, rows[0]["Genre"])
}

func TestQuery_EmptyResultIsEmptyArray(t *testing.T) {
	s := NewStore(newFixtureDB(t, 2))
	out := s.Query(context.Background(), "SELECT Title FROM movies WHERE Vote_Count > 1000")
	require.Equal(t, "[]", out)
}

func TestQuery_Truncation(t *testing.T) {
	s := NewStore(newFixtureDB(t, 25))
	out := s.Query(context.Background(), "SELECT ROWID, Title FROM movies")

	parts := strings.SplitN(out, "\n", 2)
	require.Len(t, parts, 2)
	require.Equal(t, "... (truncated, 5 more rows)", parts[1])

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(parts[0]), &rows))
	require.Len(t, rows, 20)
	require.Equal(t, "Movie 1", rows[0]["Title"])
}

func TestQuery_ExactlyMaxRowsIsNotTruncated(t *testing.T) {
	s := NewStore(newFixtureDB(t, 20))
	out := s.Query(context.Background(), "SELECT Title FROM movies")
	require.NotContains(t, out, "truncated")

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 20)
}

func TestQuery_WithMaxRows(t *testing.T) {
	s := NewStore(newFixtureDB(t, 4), WithMaxRows(3))
	out := s.Query(context.Background(), "SELECT Title FROM movies")
	require.True(t, strings.HasSuffix(out, "\n... (truncated, 1 more rows)"))
}

func TestQuery_DriverError(t *testing.T) {
	s := NewStore(newFixtureDB(t, 1))
	out := s.Query(context.Background(), "SELECT * FROM films")

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.True(t, strings.HasPrefix(payload["error"], "An error occurred: "))
	require.Contains(t, payload["error"], "no such table: films")
}

func TestQuery_NoColumns(t *testing.T) {
	s := NewStore(newFixtureDB(t, 1))
	out := s.Query(context.Background(), "PRAGMA foreign_keys = ON")
	require.JSONEq(t, `{"message":"Query executed, but no results to return."}`, out)
}

func TestQuery_ReadOnlyConnection(t *testing.T) {
	path := newFixtureDB(t, 1)
	s := NewStore(path)
	// passes the keyword gate but must still be refused by SQLite
	out := s.Query(context.Background(), "CREATE TABLE notes (x TEXT)")
	require.Contains(t, out, `"error":"An error occurred: `)

	out = s.Query(context.Background(), "SELECT name FROM sqlite_master WHERE name = 'notes'")
	require.Equal(t, "[]", out)
}

func TestStats(t *testing.T) {
	s := NewStore(newFixtureDB(t, 4))
	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	require.True(t, st.Available)
	require.Equal(t, int64(4), st.TotalMovies)
	require.Equal(t, int64(100), st.TotalVotes)

	missing := NewStore(filepath.Join(t.TempDir(), "movies.db"))
	st, err = missing.Stats(context.Background())
	require.True(t, errors.Is(err, ErrDatabaseMissing))
	require.Equal(t, Stats{}, st)
}
