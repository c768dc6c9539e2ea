package events

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/moviechat/pkg/logging"
	"github.com/go-go-golems/moviechat/pkg/redisstream"
)

// Publisher is what a chat pass needs to report progress.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Handler receives one decoded event. Events are best effort: a handler
// error is logged and the event is not redelivered.
type Handler func(ctx context.Context, e Event) error

// Bus carries chat events over watermill, in-process or through Redis Streams.
type Bus struct {
	publisher     message.Publisher
	newSubscriber func(consumer string) (message.Subscriber, error)
	// ownsSubscribers is set when each Subscribe creates a subscriber that
	// must be closed separately from the transport.
	ownsSubscribers bool
	closeFn         func() error

	mu     sync.Mutex
	subs   []message.Subscriber
	wg     sync.WaitGroup
	closed bool
}

var _ Publisher = (*Bus)(nil)

// NewInMemoryBus fans events out to in-process subscribers. Publish waits
// for every subscriber to ack, which keeps events of one pass in order.
func NewInMemoryBus() *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, logging.NewWatermill(log.Logger))
	return &Bus{
		publisher:     ch,
		newSubscriber: func(string) (message.Subscriber, error) { return ch, nil },
		closeFn:       ch.Close,
	}
}

// NewRedisBus routes events through Redis Streams so several processes can
// observe the same chat traffic.
func NewRedisBus(ctx context.Context, s redisstream.Settings) (*Bus, error) {
	t, err := redisstream.NewTransport(ctx, s)
	if err != nil {
		return nil, err
	}
	return &Bus{
		publisher: t.Publisher(),
		newSubscriber: func(consumer string) (message.Subscriber, error) {
			if err := t.EnsureGroupAtTail(ctx, Topic, consumer); err != nil {
				return nil, err
			}
			return t.Subscriber(consumer)
		},
		ownsSubscribers: true,
		closeFn:         t.Close,
	}, nil
}

// NewBus picks the Redis transport when enabled, the in-memory one otherwise.
func NewBus(ctx context.Context, s redisstream.Settings) (*Bus, error) {
	if s.Enabled {
		return NewRedisBus(ctx, s)
	}
	return NewInMemoryBus(), nil
}

// Publish sends e. A nil bus drops events.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b == nil {
		return nil
	}
	payload, err := e.Marshal()
	if err != nil {
		return err
	}
	msg := message.NewMessage(e.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("session_id", e.SessionID)
	msg.Metadata.Set("type", string(e.Type))
	return errors.Wrap(b.publisher.Publish(Topic, msg), "publish event")
}

// Subscribe runs h for every event until ctx is done or the bus closes.
// consumer names the subscriber; with Redis each consumer reads through a group
// owned by this process, so every process receives every event.
func (b *Bus) Subscribe(ctx context.Context, consumer string, h Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("bus closed")
	}
	b.mu.Unlock()

	sub, err := b.newSubscriber(consumer)
	if err != nil {
		return err
	}
	msgs, err := sub.Subscribe(ctx, Topic)
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", consumer)
	}

	b.mu.Lock()
	if b.ownsSubscribers {
		b.subs = append(b.subs, sub)
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		for msg := range msgs {
			e, err := Unmarshal(msg.Payload)
			if err != nil {
				log.Warn().Err(err).Str("consumer", consumer).Msg("dropping undecodable event")
				msg.Ack()
				continue
			}
			if err := h(msg.Context(), e); err != nil {
				log.Warn().Err(err).Str("consumer", consumer).Str("type", string(e.Type)).Msg("event handler failed")
			}
			msg.Ack()
		}
	}()
	return nil
}

// Close stops all subscribers and the transport. Safe to call more than once.
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.mu.Unlock()

	var firstErr error
	for _, s := range subs {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := b.closeFn(); err != nil && firstErr == nil {
		firstErr = err
	}
	b.wg.Wait()
	return firstErr
}
