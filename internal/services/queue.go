package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/log"
)

// DefaultNotificationWindow is the coalescing window used when none is
// configured.
const DefaultNotificationWindow = 300 * time.Millisecond

type queueKey struct {
	ownerID  string
	sourceID string
}

type pendingNotice struct {
	ownerID string
	msg     Message
	count   int
	ctx     context.Context
	timer   *time.Timer
}

// NotificationQueue coalesces notices that share an owner and a source
// transaction. A notice is delivered once no further notice with the same
// key has arrived for the length of the window; the delivered message is the
// latest one, annotated with how many were folded into it.
type NotificationQueue struct {
	sink   Notifier
	window time.Duration

	mu       sync.Mutex
	pending  map[queueKey]*pendingNotice
	inflight sync.WaitGroup
}

func NewNotificationQueue(sink Notifier, window time.Duration) *NotificationQueue {
	return &NotificationQueue{
		sink:    sink,
		window:  window,
		pending: make(map[queueKey]*pendingNotice),
	}
}

// Enqueue schedules msg for ownerID. With a zero window it is delivered
// before Enqueue returns.
func (q *NotificationQueue) Enqueue(ctx context.Context, ownerID, sourceID string, msg Message) {
	if q.window <= 0 {
		q.deliver(ctx, ownerID, msg, 1)
		return
	}

	key := queueKey{ownerID: ownerID, sourceID: sourceID}

	q.mu.Lock()
	defer q.mu.Unlock()

	if p, ok := q.pending[key]; ok {
		p.msg = msg
		p.count++
		p.timer.Reset(q.window)
		return
	}

	p := &pendingNotice{
		ownerID: ownerID,
		msg:     msg,
		count:   1,
		ctx:     context.WithoutCancel(ctx),
	}
	p.timer = time.AfterFunc(q.window, func() { q.fire(key, p) })
	q.pending[key] = p
}

func (q *NotificationQueue) fire(key queueKey, p *pendingNotice) {
	q.mu.Lock()
	if q.pending[key] != p {
		q.mu.Unlock()
		return
	}
	delete(q.pending, key)
	q.inflight.Add(1)
	ownerID, msg, count, ctx := p.ownerID, p.msg, p.count, p.ctx
	q.mu.Unlock()

	defer q.inflight.Done()
	q.deliver(ctx, ownerID, msg, count)
}

// Flush delivers every pending notice now and waits for deliveries already
// under way.
func (q *NotificationQueue) Flush(ctx context.Context) {
	q.mu.Lock()
	drained := make([]*pendingNotice, 0, len(q.pending))
	for key, p := range q.pending {
		p.timer.Stop()
		delete(q.pending, key)
		drained = append(drained, p)
	}
	q.mu.Unlock()

	for _, p := range drained {
		q.deliver(ctx, p.ownerID, p.msg, p.count)
	}
	q.inflight.Wait()
}

// Pending returns the number of notices waiting for their window to close.
func (q *NotificationQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *NotificationQueue) deliver(ctx context.Context, ownerID string, msg Message, count int) {
	if count > 1 {
		msg.Description = fmt.Sprintf("%s (%d occurrences)", msg.Description, count)
	}
	if _, err := q.sink.Notify(ctx, ownerID, msg); err != nil {
		log.FromContext(ctx, log.ComponentNotify).ErrorContext(ctx, "Failed to deliver notification",
			log.FieldOwnerID, ownerID, log.FieldTransactionID, msg.TransactionID, log.FieldError, err)
	}
}
