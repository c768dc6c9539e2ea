package redisstream

// Settings holds Redis Streams transport configuration for the chat event bus.
type Settings struct {
	Enabled bool
	Addr    string
	// Group prefixes the consumer group of every subscriber.
	Group string
	// Instance names this process; empty picks a random one per transport.
	Instance string
}

// GroupFor is the group prefix for the named consumer, shared by every
// instance.
func (s Settings) GroupFor(consumer string) string {
	if s.Group == "" {
		return consumer
	}
	return s.Group + "-" + consumer
}
