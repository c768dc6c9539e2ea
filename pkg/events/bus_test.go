package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryBus_FansOutToEveryConsumer(t *testing.T) {
	bus := NewInMemoryBus()
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := make(chan Event, 4)
	b := make(chan Event, 4)
	require.NoError(t, bus.Subscribe(ctx, "a", func(_ context.Context, e Event) error { a <- e; return nil }))
	require.NoError(t, bus.Subscribe(ctx, "b", func(_ context.Context, e Event) error { b <- e; return nil }))

	e := New("session-1", TypeToolCall)
	e.Tool = "query_database"
	e.Arguments = map[string]any{"sql_query": "SELECT 1"}
	require.NoError(t, bus.Publish(ctx, e))

	for _, ch := range []chan Event{a, b} {
		select {
		case got := <-ch:
			require.Equal(t, e.ID, got.ID)
			require.Equal(t, "session-1", got.SessionID)
			require.Equal(t, TypeToolCall, got.Type)
			require.Equal(t, "query_database", got.Tool)
			require.Equal(t, "SELECT 1", got.Arguments["sql_query"])
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBus_HandlerErrorDoesNotBlockLaterEvents(t *testing.T) {
	bus := NewInMemoryBus()
	defer func() { _ = bus.Close() }()
	ctx := context.Background()

	got := make(chan Type, 4)
	require.NoError(t, bus.Subscribe(ctx, "flaky", func(_ context.Context, e Event) error {
		got <- e.Type
		if e.Type == TypeTurnStarted {
			return context.Canceled
		}
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, New("s", TypeTurnStarted)))
	require.NoError(t, bus.Publish(ctx, New("s", TypeTurnFinished)))

	for _, want := range []Type{TypeTurnStarted, TypeTurnFinished} {
		select {
		case typ := <-got:
			require.Equal(t, want, typ)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing %s", want)
		}
	}
}

func TestNilBus(t *testing.T) {
	var bus *Bus
	require.NoError(t, bus.Publish(context.Background(), New("s", TypeTurnStarted)))
	require.NoError(t, bus.Close())
}

func TestClose_Twice(t *testing.T) {
	bus := NewInMemoryBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	require.Error(t, bus.Subscribe(context.Background(), "late", func(context.Context, Event) error { return nil }))
}

func TestEventRoundTrip(t *testing.T) {
	e := New("s", TypeTurnFailed)
	e.Error = "model unavailable"
	b, err := e.Marshal()
	require.NoError(t, err)
	got, err := Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, e.Error, got.Error)
	require.True(t, e.CreatedAt.Equal(got.CreatedAt))
}
