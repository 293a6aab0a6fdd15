package session

import "sync"

// registrationQueue carries subscription topics from a session's reader to
// its writer. It is unbounded so a reader never blocks on a writer that is
// itself stuck writing to a slow peer, and it preserves arrival order.
type registrationQueue struct {
	mu     sync.Mutex
	topics []string
	signal chan struct{}
}

func newRegistrationQueue() *registrationQueue {
	return &registrationQueue{signal: make(chan struct{}, 1)}
}

func (q *registrationQueue) push(topic string) {
	q.mu.Lock()
	q.topics = append(q.topics, topic)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// drain returns every queued topic in push order and empties the queue.
func (q *registrationQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	topics := q.topics
	q.topics = nil
	return topics
}

// ready fires after a push. It may fire spuriously once after a drain.
func (q *registrationQueue) ready() <-chan struct{} {
	return q.signal
}
