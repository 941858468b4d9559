package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/soberbookings/backend/internal/domain/entities"
	"github.com/soberbookings/backend/internal/domain/providers"
	redisclient "github.com/soberbookings/backend/internal/infrastructure/clients/redis"
	"github.com/soberbookings/backend/internal/infrastructure/observability"
)

const subscriberBuffer = 100

// RedisDiscoveryPublisher publishes facility events over Redis Pub/Sub and
// fans them out to in-process subscribers.
type RedisDiscoveryPublisher struct {
	client        *redisclient.Client
	subscriptions map[string]*redis.PubSub
	subscribers   map[string]map[chan *entities.FacilityEvent]struct{}
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

var _ providers.DiscoveryPublisher = (*RedisDiscoveryPublisher)(nil)

// NewRedisDiscoveryPublisher creates a new Redis-backed publisher
func NewRedisDiscoveryPublisher(client *redisclient.Client) *RedisDiscoveryPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisDiscoveryPublisher{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
		subscribers:   make(map[string]map[chan *entities.FacilityEvent]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Publish publishes an event on a channel
func (p *RedisDiscoveryPublisher) Publish(ctx context.Context, channel string, event *entities.FacilityEvent) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}

	if err := p.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	observability.LoggerFromContext(ctx).Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("candidate_id", event.Candidate.ID()).
		Msg("published facility event")
	return nil
}

// Subscribe returns a channel receiving events until ctx is cancelled.
func (p *RedisDiscoveryPublisher) Subscribe(ctx context.Context, channel string) (<-chan *entities.FacilityEvent, error) {
	p.mu.Lock()
	if _, exists := p.subscriptions[channel]; !exists {
		pubsub := p.client.Client().Subscribe(p.ctx, channel)
		p.subscriptions[channel] = pubsub
		go p.receive(channel, pubsub)
	}
	if p.subscribers[channel] == nil {
		p.subscribers[channel] = make(map[chan *entities.FacilityEvent]struct{})
	}
	events := make(chan *entities.FacilityEvent, subscriberBuffer)
	p.subscribers[channel][events] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.removeSubscriber(channel, events)
	}()

	return events, nil
}

func (p *RedisDiscoveryPublisher) receive(channel string, pubsub *redis.PubSub) {
	logger := observability.GetLogger().With().Str("channel", channel).Logger()
	defer p.closeChannel(channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-p.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			event, err := decodeEvent([]byte(msg.Payload))
			if err != nil {
				logger.Warn().Err(err).Msg("dropping malformed facility event")
				continue
			}
			p.broadcast(channel, event)
		}
	}
}

func (p *RedisDiscoveryPublisher) broadcast(channel string, event *entities.FacilityEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for subscriber := range p.subscribers[channel] {
		select {
		case subscriber <- event:
		default:
			observability.GetLogger().Warn().
				Str("channel", channel).
				Str("event_id", event.ID).
				Msg("subscriber buffer full, skipping event")
		}
	}
}

func (p *RedisDiscoveryPublisher) removeSubscriber(channel string, events chan *entities.FacilityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subscribers, ok := p.subscribers[channel]
	if !ok {
		return
	}
	if _, ok := subscribers[events]; !ok {
		return
	}
	delete(subscribers, events)
	close(events)

	if len(subscribers) == 0 {
		delete(p.subscribers, channel)
		if pubsub, ok := p.subscriptions[channel]; ok {
			_ = pubsub.Close()
			delete(p.subscriptions, channel)
		}
	}
}

func (p *RedisDiscoveryPublisher) closeChannel(channel string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for subscriber := range p.subscribers[channel] {
		close(subscriber)
	}
	delete(p.subscribers, channel)

	if pubsub, ok := p.subscriptions[channel]; ok {
		_ = pubsub.Close()
		delete(p.subscriptions, channel)
	}
}

// Close stops every subscription.
func (p *RedisDiscoveryPublisher) Close() error {
	p.cancel()

	p.mu.RLock()
	channels := make([]string, 0, len(p.subscriptions))
	for channel := range p.subscriptions {
		channels = append(channels, channel)
	}
	p.mu.RUnlock()

	for _, channel := range channels {
		p.closeChannel(channel)
	}
	return nil
}

func encodeEvent(event *entities.FacilityEvent) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("event is nil")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

func decodeEvent(data []byte) (*entities.FacilityEvent, error) {
	var event entities.FacilityEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &event, nil
}
