package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/moviechat/pkg/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_LogAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	e1 := events.New("sess-1", events.TypeTurnStarted)
	e1.Text = "How many movies?"
	e1.CreatedAt = base
	e2 := events.New("sess-1", events.TypeToolCall)
	e2.Tool = "query_database"
	e2.Arguments = map[string]any{"sql_query": "SELECT COUNT(*) FROM movies"}
	e2.CreatedAt = base.Add(time.Millisecond)
	e3 := events.New("sess-2", events.TypeTurnFailed)
	e3.Error = "boom"
	e3.CreatedAt = base.Add(2 * time.Millisecond)

	for _, e := range []events.Event{e1, e2, e3} {
		require.NoError(t, s.Log(ctx, e))
	}
	require.NoError(t, s.Log(ctx, e1), "duplicate ids are ignored")

	got, err := s.List(ctx, Query{SessionID: "sess-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, e1.ID, got[0].ID)
	require.Equal(t, "How many movies?", got[0].Text)
	require.Equal(t, "query_database", got[1].Tool)
	require.Equal(t, "SELECT COUNT(*) FROM movies", got[1].Arguments["sql_query"])

	failed, err := s.List(ctx, Query{Type: events.TypeTurnFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "boom", failed[0].Error)

	limited, err := s.List(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestStore_RejectsEventWithoutID(t *testing.T) {
	s := newTestStore(t)
	require.Error(t, s.Log(context.Background(), events.Event{SessionID: "x"}))
}

func TestStore_SubscribeToBus(t *testing.T) {
	s := newTestStore(t)
	bus := events.NewInMemoryBus()
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Subscribe(ctx, bus))

	e := events.New("sess-9", events.TypeTurnFinished)
	e.Text = "done"
	require.NoError(t, bus.Publish(ctx, e))

	// in-memory publish returns after the subscriber acked
	got, err := s.List(ctx, Query{SessionID: "sess-9"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "done", got[0].Text)
}

func TestDSNForFile(t *testing.T) {
	_, err := DSNForFile("  ")
	require.Error(t, err)
	dsn, err := DSNForFile("/tmp/e.db")
	require.NoError(t, err)
	require.Contains(t, dsn, "_busy_timeout=5000")
}
