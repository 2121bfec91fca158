package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/roboricindustries/raycon-tglistener/pkg/faults"
	"github.com/roboricindustries/raycon-tglistener/pkg/schemas/telegram/v1"
)

// FallbackPublisher logs records instead of publishing them (dry runs).
type FallbackPublisher struct {
	log       *slog.Logger
	connected atomic.Bool
}

func NewFallback(logger *slog.Logger) *FallbackPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackPublisher{log: logger}
}

func (p *FallbackPublisher) Connect(context.Context) error {
	p.connected.Store(true)
	return nil
}

func (p *FallbackPublisher) Publish(_ context.Context, rec *telegram.MessageV1, key string) error {
	if !p.connected.Load() {
		return faults.ErrNotConnected
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	p.log.Info("FallbackPublisher: skipped publish",
		slog.String("key", key),
		slog.Int64("chat_id", rec.ChatID),
		slog.Int64("message_id", rec.MessageID),
		slog.String("body", string(body)),
	)
	return nil
}

func (p *FallbackPublisher) Reconnect(ctx context.Context) error { return p.Connect(ctx) }

func (p *FallbackPublisher) Close() error {
	p.connected.Store(false)
	return nil
}
