// Package listener wires a Telegram source to a broker sink.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roboricindustries/raycon-tglistener/pkg/faults"
	"github.com/roboricindustries/raycon-tglistener/pkg/normalize"
	"github.com/roboricindustries/raycon-tglistener/pkg/routing"
	"github.com/roboricindustries/raycon-tglistener/pkg/schemas/telegram/v1"
	"github.com/roboricindustries/raycon-tglistener/pkg/source"
)

// Sink is the publishing side of the loop. *pubsub.Publisher and *pubsub.FallbackPublisher
// implement it.
type Sink interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, rec *telegram.MessageV1, routingKey string) error
	Reconnect(ctx context.Context) error
	Close() error
}

type Options struct {
	Service            string
	Chats              []int64
	FallbackRoutingKey string
	FetchTimeout       time.Duration // 0 leaves lookups unbounded
	Reconnect          bool          // recover from broker transport faults
}

// Loop handles one message at a time: lookups, normalization, routing, publish.
type Loop struct {
	src  source.Source
	sink Sink
	opts Options
	log  *slog.Logger

	state atomic.Int32
}

func New(src source.Source, sink Sink, opts Options, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Service == "" {
		opts.Service = telegram.DefaultService
	}
	if opts.FallbackRoutingKey == "" {
		opts.FallbackRoutingKey = telegram.FallbackRoutingKey
	}
	return &Loop{src: src, sink: sink, opts: opts, log: logger}
}

func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) setState(s State) {
	prev := State(l.state.Swap(int32(s)))
	if prev != s {
		l.log.Debug("state changed", slog.String("from", prev.String()), slog.String("to", s.String()))
	}
}

// Run blocks until ctx is cancelled (nil error) or an unrecoverable fault. The sink is
// always closed before Run returns.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := l.sink.Close(); cerr != nil {
			l.log.Warn("publisher close failed", slog.Any("error", cerr))
		}
		if err != nil {
			l.setState(Failed)
			return
		}
		l.setState(Stopped)
	}()

	l.setState(Connecting)
	if err := l.sink.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connect publisher: %w", err)
	}

	listenCtx, stopListen := context.WithCancel(ctx)
	defer stopListen()

	events := make(chan source.Message)
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- l.src.Listen(listenCtx, l.opts.Chats, func() {
			l.setState(Listening)
			l.log.Info("listening", slog.Any("chats", l.opts.Chats))
		}, events)
	}()

	// stop waits for the source to return so no goroutine outlives Run.
	stop := func() error {
		stopListen()
		return <-listenErr
	}

	for {
		select {
		case <-ctx.Done():
			l.setState(Draining)
			if err := stop(); err != nil && !errors.Is(err, context.Canceled) {
				l.log.Debug("source stopped", slog.Any("error", err))
			}
			return nil

		case err := <-listenErr:
			if ctx.Err() != nil {
				l.setState(Draining)
				return nil
			}
			if err == nil {
				err = errors.New("source stopped unexpectedly")
			}
			return fmt.Errorf("listen: %w", err)

		case msg := <-events:
			if err := l.handle(ctx, msg); err != nil {
				_ = stop()
				return err
			}
		}
	}
}

// handle finishes the event even if ctx is cancelled mid-way; only broker recovery
// observes cancellation.
func (l *Loop) handle(ctx context.Context, msg source.Message) error {
	work := context.WithoutCancel(ctx)
	log := l.log.With(slog.Int64("chat_id", msg.ChatID), slog.Int64("message_id", msg.ID))

	sender := msg.Sender
	if sender == nil && msg.SenderID != nil {
		sender = l.sender(work, log, &msg)
	}

	var reply *source.Message
	if msg.IsReply() {
		reply = l.reply(work, log, &msg)
		if reply != nil && reply.Sender == nil && reply.SenderID != nil {
			reply.Sender = l.sender(work, log, reply)
		}
	}

	rec := normalize.Normalize(l.opts.Service, &msg, sender, reply)
	key := routing.ForRecord(&rec, l.opts.FallbackRoutingKey)
	return l.publish(ctx, work, log.With(slog.String("key", key)), &rec, key)
}

func (l *Loop) sender(ctx context.Context, log *slog.Logger, msg *source.Message) *source.User {
	ctx, cancel := l.fetchContext(ctx)
	defer cancel()
	u, err := l.src.Sender(ctx, msg)
	if err != nil {
		log.Debug("sender lookup failed", slog.Int64("of_message", msg.ID), slog.Any("error", err))
		return nil
	}
	return u
}

func (l *Loop) reply(ctx context.Context, log *slog.Logger, msg *source.Message) *source.Message {
	ctx, cancel := l.fetchContext(ctx)
	defer cancel()
	r, err := l.src.ReplyTo(ctx, msg)
	if err != nil {
		log.Debug("reply lookup failed", slog.Any("error", err))
		return nil
	}
	return r
}

func (l *Loop) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opts.FetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.opts.FetchTimeout)
}

func (l *Loop) publish(ctx, work context.Context, log *slog.Logger, rec *telegram.MessageV1, key string) error {
	err := l.sink.Publish(work, rec, key)
	if err == nil {
		return nil
	}
	if !recoverable(err) {
		log.Error("publish failed", slog.Any("error", err))
		return nil
	}
	if !l.opts.Reconnect {
		return fmt.Errorf("publish chat %d message %d: %w", rec.ChatID, rec.MessageID, err)
	}

	log.Warn("broker connection lost, reconnecting", slog.Any("error", err))
	if rerr := l.sink.Reconnect(ctx); rerr != nil {
		if ctx.Err() != nil {
			log.Warn("message dropped during shutdown")
			return nil
		}
		return fmt.Errorf("reconnect publisher: %w", rerr)
	}
	if err := l.sink.Publish(work, rec, key); err != nil {
		if recoverable(err) {
			return fmt.Errorf("republish chat %d message %d: %w", rec.ChatID, rec.MessageID, err)
		}
		log.Error("publish failed", slog.Any("error", err))
	}
	return nil
}

func recoverable(err error) bool {
	return errors.Is(err, faults.ErrTransport) || errors.Is(err, faults.ErrNotConnected)
}
