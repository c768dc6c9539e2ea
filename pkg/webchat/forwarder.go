package webchat

import (
	"context"

	"github.com/go-go-golems/moviechat/pkg/events"
)

const forwarderConsumer = "websocket"

// StartForwarder pushes every chat event to the websockets watching the
// event's session. Sessions nobody watches are skipped.
func (s *Server) StartForwarder(ctx context.Context) error {
	return s.app.Bus.Subscribe(ctx, forwarderConsumer, func(_ context.Context, e events.Event) error {
		pool := s.pools.get(e.SessionID)
		if pool.IsEmpty() {
			return nil
		}
		payload, err := e.Marshal()
		if err != nil {
			return err
		}
		pool.Broadcast(payload)
		return nil
	})
}
