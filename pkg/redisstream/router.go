package redisstream

import (
	"context"
	"strings"
	"sync"
	"time"

	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/moviechat/pkg/logging"
)

const groupCleanupTimeout = 5 * time.Second

// Transport is a Redis Streams publisher plus a factory for subscribers, all
// sharing one client. Every Transport is its own instance: its subscribers
// read through groups no other process joins, so each process sees every
// event.
type Transport struct {
	settings  Settings
	instance  string
	client    redis.UniversalClient
	publisher message.Publisher

	mu     sync.Mutex
	groups map[string]string // group -> stream
}

// NewTransport connects to Redis and builds the publisher.
func NewTransport(ctx context.Context, s Settings) (*Transport, error) {
	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", s.Addr)
	}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: rstream.DefaultMarshallerUnmarshaller{},
	}, logging.NewWatermill(log.Logger))
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis publisher")
	}

	instance := s.Instance
	if instance == "" {
		instance = uuid.NewString()
	}
	return &Transport{
		settings:  s,
		instance:  instance,
		client:    client,
		publisher: pub,
		groups:    map[string]string{},
	}, nil
}

func (t *Transport) Publisher() message.Publisher {
	return t.publisher
}

// Instance identifies this transport among the processes sharing Redis.
func (t *Transport) Instance() string {
	return t.instance
}

// GroupFor is the consumer group this instance reads consumer's events from.
func (t *Transport) GroupFor(consumer string) string {
	return t.settings.GroupFor(consumer) + "-" + t.instance
}

// Subscriber returns a subscriber bound to the consumer's group on this
// instance.
func (t *Transport) Subscriber(consumer string) (message.Subscriber, error) {
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        t.client,
		Unmarshaller:  rstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: t.GroupFor(consumer),
		Consumer:      consumer + "-" + t.instance,
		OldestId:      "$",
	}, logging.NewWatermill(log.Logger))
	if err != nil {
		return nil, errors.Wrapf(err, "redis subscriber %s", consumer)
	}
	return sub, nil
}

// EnsureGroupAtTail creates the consumer's group on stream at the tail ($)
// if it doesn't exist, so a new consumer does not replay history. Groups
// created here are destroyed again by Close.
func (t *Transport) EnsureGroupAtTail(ctx context.Context, stream, consumer string) error {
	group := t.GroupFor(consumer)
	err := t.client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		// BUSYGROUP means the group already exists
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create group %s", group)
	}
	t.mu.Lock()
	t.groups[group] = stream
	t.mu.Unlock()
	log.Debug().Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}

func (t *Transport) Close() error {
	perr := t.publisher.Close()
	t.destroyGroups()
	cerr := t.client.Close()
	if perr != nil {
		return errors.Wrap(perr, "close redis publisher")
	}
	return errors.Wrap(cerr, "close redis client")
}

// destroyGroups drops this instance's groups so stopped processes leave no
// consumers behind on the stream.
func (t *Transport) destroyGroups() {
	t.mu.Lock()
	groups := t.groups
	t.groups = map[string]string{}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), groupCleanupTimeout)
	defer cancel()
	for group, stream := range groups {
		if err := t.client.XGroupDestroy(ctx, stream, group).Err(); err != nil {
			log.Debug().Err(err).Str("stream", stream).Str("group", group).Msg("could not destroy redis consumer group")
		}
	}
}
