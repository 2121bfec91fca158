package pubsub

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection is the subset of *amqp.Connection the package uses.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

// Channel is the subset of *amqp.Channel the package uses. *amqp.Channel satisfies it.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

type Dialer func(ctx context.Context, url string) (Connection, error)

var _ Channel = (*amqp.Channel)(nil)

type amqpConn struct {
	*amqp.Connection
}

func (c amqpConn) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

const defaultConnTimeout = 30 * time.Second

// DialAMQP dials with amqp091. The library has no ctx, so the context deadline only
// shortens the TCP dial timeout.
func DialAMQP(timeout time.Duration, connectionName string) Dialer {
	if timeout <= 0 {
		timeout = defaultConnTimeout
	}
	return func(ctx context.Context, url string) (Connection, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		limit := timeout
		if deadline, ok := ctx.Deadline(); ok {
			if left := time.Until(deadline); left < limit {
				limit = left
			}
		}
		props := amqp.NewConnectionProperties()
		if connectionName != "" {
			props.SetClientConnectionName(connectionName)
		}
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat:  10 * time.Second,
			Locale:     "en_US",
			Dial:       amqp.DefaultDial(limit),
			Properties: props,
		})
		if err != nil {
			return nil, err
		}
		return amqpConn{conn}, nil
	}
}
