package config

import (
	"github.com/roboricindustries/raycon-tglistener/pkg/listener"
	"github.com/roboricindustries/raycon-tglistener/pkg/pubsub"
)

func (b *Broker) Publisher() pubsub.Config {
	return pubsub.Config{
		URL:               b.MQ.URL,
		Exchange:          b.MQ.Exchange,
		Queue:             b.MQ.Queue,
		Persistent:        bool(b.MQ.Persistent),
		Confirm:           bool(b.MQ.Confirm),
		AppID:             b.Service,
		ConnTimeout:       b.MQ.ConnTimeout,
		ReconnectAttempts: b.MQ.ReconnectAttempts,
		ReconnectBase:     b.MQ.ReconnectBase,
		ReconnectCap:      b.MQ.ReconnectCap,
	}
}

func (c *Config) Listener() listener.Options {
	return listener.Options{
		Service:            c.Service,
		Chats:              c.Chats,
		FallbackRoutingKey: c.MQ.RoutingKey,
		FetchTimeout:       c.Telegram.FetchTimeout,
		Reconnect:          c.MQ.ReconnectAttempts > 0,
	}
}
