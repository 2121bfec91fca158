package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/roboricindustries/raycon-tglistener/pkg/faults"
)

// ConsumerSpec defines a single consumer.
type ConsumerSpec struct {
	Name       string
	Exchange   string
	Queue      string // empty declares a server-named, exclusive, auto-delete queue
	BindingKey string
	Prefetch   int // 0 => 1

	Consume func(ctx context.Context, d amqp.Delivery) error
}

// ErrPoison indicates non-retriable "bad content" (e.g., JSON decode fail).
var ErrPoison = errors.New("poison message")

// JSONHandler wraps a typed handler and turns JSON decode failure into ErrPoison.
func JSONHandler[T any](h func(context.Context, T) error) func(context.Context, amqp.Delivery) error {
	return func(ctx context.Context, d amqp.Delivery) error {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrPoison, err)
		}
		return h(ctx, v)
	}
}

// Consumer runs one supervised consumer, reconnecting when the connection drops.
type Consumer struct {
	cfg Config
	log *slog.Logger
}

func NewConsumer(cfg Config, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg, log: logger}
}

// Run blocks until ctx is cancelled or reconnecting gives up.
func (c *Consumer) Run(ctx context.Context, spec ConsumerSpec) error {
	if spec.Consume == nil {
		return errors.New("consumer handler is required")
	}
	if spec.Exchange == "" {
		spec.Exchange = c.cfg.Exchange
	}

	opts := c.cfg.retryOptions()
	opts.Logger = c.log
	for {
		err := c.runOnce(ctx, spec)
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, faults.ErrTransport) {
			return err
		}
		c.log.Error("amqp connection closed, reconnecting", slog.String("name", spec.Name), slog.Any("error", err))

		var conn Connection
		err = Retry(ctx, opts, func(ctx context.Context) error {
			var derr error
			conn, derr = c.cfg.dialer()(ctx, c.cfg.URL)
			return derr
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return faults.Transport("reconnect consumer", err)
		}
		// runOnce dials its own connection; this one only proved the broker is back.
		_ = SafeCloseConn(conn)
	}
}

func (c *Consumer) runOnce(ctx context.Context, spec ConsumerSpec) error {
	conn, err := c.cfg.dialer()(ctx, c.cfg.URL)
	if err != nil {
		return faults.Transport("dial rabbitmq", err)
	}
	defer SafeCloseConn(conn)

	ch, err := conn.Channel()
	if err != nil {
		return faults.Transport("open channel", err)
	}
	defer SafeClose(ch)

	msgs, queue, err := c.declare(ch, spec)
	if err != nil {
		return err
	}
	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.log.Info("consumer started",
		slog.String("name", spec.Name),
		slog.String("queue", queue),
		slog.String("binding", spec.BindingKey),
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case aerr, ok := <-closeCh:
			if !ok || aerr == nil {
				aerr = &amqp.Error{Reason: "connection closed"}
			}
			return faults.Transport("consume", aerr)

		case d, ok := <-msgs:
			if !ok {
				return faults.Transport("consume", amqp.ErrClosed)
			}
			c.handle(ctx, spec, d)
		}
	}
}

// declare binds the consumer queue to the (idempotently re-declared) exchange.
func (c *Consumer) declare(ch Channel, spec ConsumerSpec) (<-chan amqp.Delivery, string, error) {
	pf := spec.Prefetch
	if pf <= 0 {
		pf = 1
	}
	if err := ch.Qos(pf, 0, false); err != nil {
		return nil, "", err
	}
	if err := ch.ExchangeDeclare(spec.Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, "", fmt.Errorf("declare exchange %q: %w", spec.Exchange, err)
	}

	temporary := spec.Queue == ""
	q, err := ch.QueueDeclare(spec.Queue, !temporary, temporary, temporary, false, nil)
	if err != nil {
		return nil, "", fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, FirstNonEmpty(spec.BindingKey, "#"), spec.Exchange, false, nil); err != nil {
		return nil, "", fmt.Errorf("bind queue %q: %w", q.Name, err)
	}
	msgs, err := ch.Consume(q.Name, spec.Name, false, temporary, false, false, nil)
	if err != nil {
		return nil, "", fmt.Errorf("consume %q: %w", q.Name, err)
	}
	return msgs, q.Name, nil
}

func (c *Consumer) handle(ctx context.Context, spec ConsumerSpec, d amqp.Delivery) {
	err := spec.Consume(ctx, d)
	switch {
	case errors.Is(err, ErrPoison):
		c.log.Warn("poison message dropped", slog.String("key", d.RoutingKey), slog.Any("error", err))
		_ = d.Ack(false)
	case err != nil:
		c.log.Error("handler error", slog.String("key", d.RoutingKey), slog.Any("err", err))
		// a temporary queue would hand the same message straight back
		_ = d.Nack(false, spec.Queue != "")
	default:
		_ = d.Ack(false)
	}
}
