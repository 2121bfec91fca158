// Package faults holds the error taxonomy shared by the listener packages.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks bad or missing configuration. Always fatal, raised before any connection.
	ErrConfig = errors.New("invalid configuration")
	// ErrNotConnected is returned by publishers used before a successful Connect.
	ErrNotConnected = errors.New("publisher is not connected")
	// ErrUnauthorized means the Telegram session cannot be used without interactive login.
	ErrUnauthorized = errors.New("telegram session is not authorized")
	// ErrTransport marks lost broker or platform connectivity.
	ErrTransport = errors.New("transport fault")
	// ErrFetch marks a failed auxiliary lookup (sender, reply message).
	ErrFetch = errors.New("lookup failed")
)

type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func Config(key, reason string) error {
	return &ConfigError{Key: key, Reason: reason}
}

// Transport wraps err so that errors.Is(result, ErrTransport) holds while err stays inspectable.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

// Fetch wraps a lookup failure.
func Fetch(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrFetch)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrFetch, err)
}
