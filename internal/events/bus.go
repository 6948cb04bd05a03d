package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danghamo/rescueme/pkg/logger"
)

// Transport drivers
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// BusConfig selects the transport behind the event bus
type BusConfig struct {
	Driver        string
	Redis         redis.UniversalClient
	ConsumerGroup string
	TopicPrefix   string
}

// Bus bundles the watermill publisher, router, event bus and processor
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	eventBus   *cqrs.EventBus
	processor  *cqrs.EventProcessor
	logger     *logger.Logger

	// gochannel is publisher and subscriber at once
	sharedPubSub bool
}

// NewBus creates the event bus. Redis streams are used in production; the
// memory driver keeps everything in-process.
func NewBus(cfg BusConfig, log *logger.Logger) (*Bus, error) {
	busLogger := log.WithComponent("event-bus")
	watermillLogger := logger.NewWatermillAdapter(busLogger)

	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "rescueme-events"
	}

	var (
		publisher  message.Publisher
		subscriber message.Subscriber
		shared     bool
	)
	switch cfg.Driver {
	case DriverRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis event bus requires a client")
		}
		pub, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: cfg.Redis,
			},
			watermillLogger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		sub, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        cfg.Redis,
				ConsumerGroup: cfg.ConsumerGroup,
			},
			watermillLogger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create subscriber: %w", err)
		}
		publisher, subscriber = pub, sub
	case DriverMemory:
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermillLogger)
		publisher, subscriber, shared = pubSub, pubSub, true
	default:
		return nil, fmt.Errorf("unknown event bus driver: %s", cfg.Driver)
	}

	// Create message router with short close timeout
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 5 * time.Second,
	}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	marshaler := cqrs.JSONMarshaler{GenerateName: cqrs.StructName}
	topic := func(eventName string) string {
		return fmt.Sprintf("%s.%s", cfg.TopicPrefix, eventName)
	}

	eventBus, err := cqrs.NewEventBusWithConfig(
		publisher,
		cqrs.EventBusConfig{
			GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
				return topic(params.EventName), nil
			},
			Marshaler: marshaler,
			Logger:    watermillLogger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	processor, err := cqrs.NewEventProcessorWithConfig(
		router,
		cqrs.EventProcessorConfig{
			GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
				return topic(params.EventName), nil
			},
			SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
				return subscriber, nil
			},
			Marshaler: marshaler,
			Logger:    watermillLogger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event processor: %w", err)
	}

	return &Bus{
		publisher:  publisher,
		subscriber: subscriber,
		router:     router,
		eventBus:   eventBus,
		processor:  processor,
		logger:     busLogger,

		sharedPubSub: shared,
	}, nil
}

// Publish sends an event to every subscribed handler
func (b *Bus) Publish(ctx context.Context, event interface{}) error {
	return b.eventBus.Publish(ctx, event)
}

// Publisher exposes the raw publisher, used for the outbound SMS stream
func (b *Bus) Publisher() message.Publisher {
	return b.publisher
}

// AddHandlers registers event handlers; call before Run
func (b *Bus) AddHandlers(handlers ...cqrs.EventHandler) error {
	return b.processor.AddHandlers(handlers...)
}

// RegisterSSEHandlers wires the SSE event handler into the processor
func (b *Bus) RegisterSSEHandlers(h *SSEEventHandler) error {
	return b.AddHandlers(
		cqrs.NewEventHandler("TrackingStateChangedEvent", h.HandleTrackingStateChangedEvent),
		cqrs.NewEventHandler("EmergencyStateChangedEvent", h.HandleEmergencyStateChangedEvent),
		cqrs.NewEventHandler("DispatchCompletedEvent", h.HandleDispatchCompletedEvent),
		cqrs.NewEventHandler("SSENotificationEvent", h.HandleSSENotificationEvent),
	)
}

// Run blocks until ctx is done or the router is closed
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once the router has started all handlers
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and the transport
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		b.logger.Error("Router shutdown error", zap.Error(err))
		return err
	}
	if err := b.publisher.Close(); err != nil {
		return err
	}
	if b.sharedPubSub {
		return nil
	}
	return b.subscriber.Close()
}
