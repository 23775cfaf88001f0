package mq

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Message is one delivery handed to a MessageHandler
type Message struct {
	ID         string
	RoutingKey string
	Body       []byte
}

// MessageHandler processes a message. A returned error dead-letters it.
type MessageHandler func(ctx context.Context, msg Message) error

// Consumer handles message consumption from RabbitMQ
type Consumer struct {
	channel       *amqp.Channel
	queue         string
	prefetchCount int
	logger        *zap.Logger
	handler       MessageHandler
	workers       *pool.Pool
	tag           string
	// done is closed when the dispatch loop has exited and no more work
	// will be submitted to workers.
	done chan struct{}
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Connection    *Connection
	Queue         string
	DLQQueue      string
	Exchange      string
	RoutingKey    string
	PrefetchCount int
	Logger        *zap.Logger
	Handler       MessageHandler
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}

// declareTopology declares the intake exchange, its queue with a dead
// letter queue, and the binding between them.
func declareTopology(ch *amqp.Channel, cfg ConsumerConfig) error {
	if err := declareExchange(ch, cfg.Exchange); err != nil {
		return err
	}

	_, err := ch.QueueDeclare(cfg.DLQQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DLQQueue,
	}
	_, err = ch.QueueDeclare(cfg.Queue, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// NewConsumer creates a new RabbitMQ consumer
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.PrefetchCount < 1 {
		cfg.PrefetchCount = 1
	}

	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		return nil, err
	}

	return &Consumer{
		channel:       ch,
		queue:         cfg.Queue,
		prefetchCount: cfg.PrefetchCount,
		logger:        cfg.Logger,
		handler:       cfg.Handler,
		workers:       pool.New().WithMaxGoroutines(cfg.PrefetchCount),
		tag:           cfg.Queue + "-" + uuid.NewString(),
	}, nil
}

// Start starts consuming messages. Deliveries are handled concurrently, at
// most one per prefetch slot.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		c.tag, // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetchCount),
	)

	c.dispatch(ctx, msgs)
	return nil
}

// dispatch hands deliveries to the worker pool until ctx is cancelled or
// msgs is closed.
func (c *Consumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery) {
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("consumer context cancelled, stopping")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("message channel closed")
					return
				}
				c.workers.Go(func() {
					c.processMessage(context.WithoutCancel(ctx), msg)
				})
			}
		}
	}()
}

// drain waits for the dispatch loop to exit, then for in-flight handlers.
// Unacknowledged deliveries left in the channel buffer are redelivered by
// the broker once the channel closes.
func (c *Consumer) drain(ctx context.Context) error {
	if c.done != nil {
		select {
		case <-c.done:
		case <-ctx.Done():
			return fmt.Errorf("consumer did not stop in time: %w", ctx.Err())
		}
	}
	c.workers.Wait()
	return nil
}

func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	logger := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("message_id", msg.MessageId),
	)
	logger.Debug("received message", zap.Int("body_size", len(msg.Body)))

	err := c.handler(ctx, Message{
		ID:         msg.MessageId,
		RoutingKey: msg.RoutingKey,
		Body:       msg.Body,
	})
	if err != nil {
		logger.Error("failed to process message", zap.Error(err))

		// NACK with requeue=false sends to DLQ
		if nackErr := msg.Nack(false, false); nackErr != nil {
			logger.Error("failed to NACK message", zap.Error(nackErr))
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		logger.Error("failed to ACK message", zap.Error(ackErr))
	}
}

// RegisterLifecycle starts the consumer with the fx application. On stop no
// new deliveries are taken and in-flight messages run to completion.
func (c *Consumer) RegisterLifecycle(lc fx.Lifecycle) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return c.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := c.channel.Cancel(c.tag, false); err != nil {
				c.logger.Warn("failed to cancel consumer", zap.Error(err))
			}
			if err := c.drain(stopCtx); err != nil {
				c.logger.Error("failed to drain consumer", zap.Error(err))
				return err
			}
			if err := c.channel.Close(); err != nil {
				c.logger.Error("failed to close consumer channel", zap.Error(err))
				return err
			}
			c.logger.Info("consumer stopped")
			return nil
		},
	})
}
