package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/roboricindustries/raycon-tglistener/pkg/faults"
	"github.com/roboricindustries/raycon-tglistener/pkg/schemas/telegram/v1"
)

// ErrNacked is returned when the broker refuses a confirmed publish.
var ErrNacked = errors.New("publish nacked by broker")

// Publisher owns one connection and one channel; it is the only writer on that channel.
type Publisher struct {
	cfg Config
	log *slog.Logger

	mu   sync.Mutex
	conn Connection
	ch   Channel

	waitConfirm func(context.Context, *amqp.DeferredConfirmation) (bool, error)
}

func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, log: logger, waitConfirm: awaitConfirm}
}

func awaitConfirm(ctx context.Context, dc *amqp.DeferredConfirmation) (bool, error) {
	return dc.WaitContext(ctx)
}

// Connect dials the broker and declares the topology. On a live channel it only
// re-issues the same declarations, which the broker treats as no-ops.
// Dial failures are not retried here; see Reconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	const op = "rabbitmq.Connect"

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.declare(p.ch)
	}
	_ = p.closeLocked()
	if err := p.openLocked(ctx); err != nil {
		p.log.With("op", op).Error("connect failed", slog.Any("error", err))
		return err
	}
	p.log.With("op", op).Info("publisher ready",
		slog.String("host", brokerHost(p.cfg.URL)),
		slog.String("exchange", p.cfg.Exchange),
		slog.String("queue", p.cfg.Queue),
		slog.Bool("persistent", p.cfg.Persistent),
		slog.Bool("confirm", p.cfg.Confirm),
	)
	return nil
}

func (p *Publisher) openLocked(ctx context.Context) error {
	if p.cfg.URL == "" {
		return faults.Config("MQ_URL", "rabbitmq URL is required")
	}
	if p.cfg.Exchange == "" {
		return faults.Config("MQ_EXCHANGE", "exchange is required")
	}

	conn, err := p.cfg.dialer()(ctx, p.cfg.URL)
	if err != nil {
		return faults.Transport("dial rabbitmq", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return faults.Transport("open channel", err)
	}
	if p.cfg.Confirm {
		if err := ch.Confirm(false); err != nil {
			_ = SafeClose(ch)
			_ = conn.Close()
			return fmt.Errorf("confirm mode: %w", err)
		}
	}
	if err := p.declare(ch); err != nil {
		_ = SafeClose(ch)
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

// declare sets up the durable topic exchange and the catch-all queue binding.
func (p *Publisher) declare(ch Channel) error {
	if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", p.cfg.Exchange, err)
	}
	if p.cfg.Queue == "" {
		return nil
	}
	q, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", p.cfg.Queue, err)
	}
	if err := ch.QueueBind(q.Name, "#", p.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %q: %w", p.cfg.Queue, err)
	}
	return nil
}

// Publish sends rec as JSON under routingKey. Broker faults are returned to the caller;
// lost connections are wrapped as faults.ErrTransport.
func (p *Publisher) Publish(ctx context.Context, rec *telegram.MessageV1, routingKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return faults.ErrNotConnected
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	mode := amqp.Transient
	if p.cfg.Persistent {
		mode = amqp.Persistent
	}

	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         telegram.EventType,
		AppId:        FirstNonEmpty(p.cfg.AppID, rec.Service),
		Body:         body,
	})
	if err != nil {
		return p.classify("publish", err)
	}
	if dc != nil {
		acked, err := p.waitConfirm(ctx, dc)
		if err != nil {
			return p.classify("await confirm", err)
		}
		if !acked {
			// Pending confirmations resolve as nacks when the channel shuts down.
			if p.ch.IsClosed() || (p.conn != nil && p.conn.IsClosed()) {
				return p.classify("await confirm", amqp.ErrClosed)
			}
			return fmt.Errorf("publish %s: %w", routingKey, ErrNacked)
		}
	}

	p.log.Debug("published",
		slog.String("key", routingKey),
		slog.String("exchange", p.cfg.Exchange),
		slog.Int64("chat_id", rec.ChatID),
		slog.Int64("message_id", rec.MessageID),
	)
	return nil
}

func (p *Publisher) classify(op string, err error) error {
	if errors.Is(err, amqp.ErrClosed) ||
		(p.ch != nil && p.ch.IsClosed()) ||
		(p.conn != nil && p.conn.IsClosed()) {
		return faults.Transport(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Reconnect drops the current connection and dials again with backoff.
func (p *Publisher) Reconnect(ctx context.Context) error {
	const op = "rabbitmq.Reconnect"

	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.closeLocked()

	opts := p.cfg.retryOptions()
	opts.Logger = p.log.With("op", op)
	if err := Retry(ctx, opts, p.openLocked); err != nil {
		return faults.Transport("reconnect", err)
	}
	p.log.With("op", op).Info("reconnected")
	return nil
}

// Close releases the channel, then the connection. Safe to call repeatedly.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var errs []error
	if p.ch != nil {
		if err := SafeClose(p.ch); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := SafeCloseConn(p.conn); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		p.conn = nil
	}
	return errors.Join(errs...)
}

func brokerHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
