package pubsub

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeBroker struct {
	mu         sync.Mutex
	dials      int
	failDials  int
	exchanges  map[string]string
	queues     map[string]bool
	bindings   []string
	published  []published
	confirmed  bool
	publishErr error
	deliveries chan amqp.Delivery
	conns      []*fakeConn
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		exchanges:  map[string]string{},
		queues:     map[string]bool{},
		deliveries: make(chan amqp.Delivery, 16),
	}
}

func (b *fakeBroker) dial(ctx context.Context, _ string) (Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.failDials > 0 {
		b.failDials--
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{broker: b}
	b.conns = append(b.conns, c)
	return c, nil
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBroker) lastConn() *fakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		return nil
	}
	return b.conns[len(b.conns)-1]
}

type fakeConn struct {
	broker   *fakeBroker
	mu       sync.Mutex
	closed   bool
	ch       *fakeChannel
	notifies []chan *amqp.Error
}

func (c *fakeConn) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, amqp.ErrClosed
	}
	c.ch = &fakeChannel{broker: c.broker}
	return c.ch, nil
}

func (c *fakeConn) watched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notifies) > 0
}

func (c *fakeConn) NotifyClose(r chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifies = append(c.notifies, r)
	return r
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	if c.ch != nil {
		c.ch.kill()
	}
	return nil
}

// drop simulates the broker going away.
func (c *fakeConn) drop() {
	c.mu.Lock()
	c.closed = true
	ch := c.ch
	notifies := c.notifies
	c.notifies = nil
	c.mu.Unlock()
	if ch != nil {
		ch.kill()
	}
	for _, n := range notifies {
		n <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "broker shutdown"}
		close(n)
	}
}

type fakeChannel struct {
	broker  *fakeBroker
	mu      sync.Mutex
	closed  bool
	confirm bool
}

func (c *fakeChannel) kill() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	if c.IsClosed() {
		return amqp.ErrClosed
	}
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.exchanges[name]; ok && prev != kind {
		return &amqp.Error{Code: amqp.PreconditionFailed, Reason: "inequivalent arg 'type'"}
	}
	b.exchanges[name] = kind
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if c.IsClosed() {
		return amqp.Queue{}, amqp.ErrClosed
	}
	if name == "" {
		name = "amq.gen-test"
	}
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[name] = durable
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	if c.IsClosed() {
		return amqp.ErrClosed
	}
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	binding := exchange + "->" + name + ":" + key
	for _, have := range b.bindings {
		if have == binding {
			return nil
		}
	}
	b.bindings = append(b.bindings, binding)
	return nil
}

func (c *fakeChannel) Confirm(noWait bool) error {
	c.mu.Lock()
	c.confirm = true
	c.mu.Unlock()
	c.broker.mu.Lock()
	c.broker.confirmed = true
	c.broker.mu.Unlock()
	return nil
}

func (c *fakeChannel) PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	if c.IsClosed() {
		return nil, amqp.ErrClosed
	}
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return nil, b.publishErr
	}
	b.published = append(b.published, published{exchange: exchange, key: key, msg: msg})
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confirm {
		return &amqp.DeferredConfirmation{}, nil
	}
	return nil, nil
}

func (c *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if c.IsClosed() {
		return nil, amqp.ErrClosed
	}
	return c.broker.deliveries, nil
}

func (c *fakeChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	return nil
}

type ackRecord struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcker struct {
	mu   sync.Mutex
	acks []ackRecord
	done chan struct{}
}

func newFakeAcker() *fakeAcker { return &fakeAcker{done: make(chan struct{}, 16)} }

func (a *fakeAcker) record(r ackRecord) error {
	a.mu.Lock()
	a.acks = append(a.acks, r)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	return a.record(ackRecord{tag: tag, ack: true})
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	return a.record(ackRecord{tag: tag, requeue: requeue})
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.record(ackRecord{tag: tag, requeue: requeue})
}

func (a *fakeAcker) snapshot() []ackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ackRecord(nil), a.acks...)
}
