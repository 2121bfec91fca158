package mtproto

import (
	"context"
	"sync"

	"github.com/roboricindustries/raycon-tglistener/pkg/source"
)

// queue sits between gotd update handlers and the consumer. push never blocks; handlers
// share the connection that serves lookups.
type queue struct {
	mu      sync.Mutex
	pending []source.Message
	signal  chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

func (q *queue) push(m source.Message) {
	q.mu.Lock()
	q.pending = append(q.pending, m)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (source.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return source.Message{}, false
	}
	m := q.pending[0]
	q.pending[0] = source.Message{}
	q.pending = q.pending[1:]
	return m, true
}

// drain forwards queued messages in order until ctx is done.
func (q *queue) drain(ctx context.Context, out chan<- source.Message) error {
	for {
		m, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.signal:
				continue
			}
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
