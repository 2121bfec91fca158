package pubsub

import (
	"math/rand"
	"time"
)

func JitteredDelay(base, cap time.Duration, jitterPct int) time.Duration {
	if jitterPct <= 0 {
		jitterPct = 25
	}
	delta := (rand.Float64()*2 - 1) * float64(jitterPct) / 100.0
	wait := time.Duration(float64(base) * (1 + delta))
	if wait < 0 {
		wait = base
	}
	if wait > cap {
		wait = cap
	}
	return wait
}

func FirstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// SafeClose closes ch, tolerating nil and already-closed channels.
func SafeClose(ch Channel) error {
	if ch == nil || ch.IsClosed() {
		return nil
	}
	defer func() { _ = recover() }()
	return ch.Close()
}

// SafeCloseConn is SafeClose for connections.
func SafeCloseConn(conn Connection) error {
	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}
