package pubsub

import "time"

// Config defines the publisher connection and topology.
type Config struct {
	URL      string
	Exchange string // durable topic exchange
	Queue    string // durable queue bound with "#"; empty skips queue declaration

	Persistent bool // delivery mode 2 when true, 1 otherwise
	Confirm    bool // wait for broker acks on every publish

	AppID       string // stamped on every message, also the AMQP connection name
	ConnTimeout time.Duration

	ReconnectAttempts      int
	ReconnectBase          time.Duration
	ReconnectCap           time.Duration
	ReconnectJitterPercent int

	Dialer Dialer // nil dials with amqp091
}

func (c Config) retryOptions() RetryOptions {
	return RetryOptions{
		Attempts:      c.ReconnectAttempts,
		Base:          c.ReconnectBase,
		Cap:           c.ReconnectCap,
		JitterPercent: c.ReconnectJitterPercent,
	}
}

func (c Config) dialer() Dialer {
	if c.Dialer != nil {
		return c.Dialer
	}
	return DialAMQP(c.ConnTimeout, c.AppID)
}
