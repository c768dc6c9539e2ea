package redisstream

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestSettingsGroupFor(t *testing.T) {
	require.Equal(t, "moviechat-eventlog", Settings{Group: "moviechat"}.GroupFor("eventlog"))
	require.Equal(t, "websocket", Settings{}.GroupFor("websocket"))
}

func TestTransportGroupsArePerInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	a, err := NewTransport(ctx, Settings{Addr: mr.Addr(), Group: "moviechat"})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := NewTransport(ctx, Settings{Addr: mr.Addr(), Group: "moviechat"})
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NotEqual(t, a.Instance(), b.Instance())
	require.NotEqual(t, a.GroupFor("websocket"), b.GroupFor("websocket"))
	require.Equal(t, "moviechat-websocket-"+a.Instance(), a.GroupFor("websocket"))

	named, err := NewTransport(ctx, Settings{Addr: mr.Addr(), Group: "moviechat", Instance: "web-1"})
	require.NoError(t, err)
	defer func() { _ = named.Close() }()
	require.Equal(t, "moviechat-websocket-web-1", named.GroupFor("websocket"))

	require.NoError(t, a.EnsureGroupAtTail(ctx, "moviechat.events", "websocket"))
	require.NoError(t, a.EnsureGroupAtTail(ctx, "moviechat.events", "websocket"))
}

func TestNewTransportFailsWithoutRedis(t *testing.T) {
	_, err := NewTransport(context.Background(), Settings{Enabled: true, Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
