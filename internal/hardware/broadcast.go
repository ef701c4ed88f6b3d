package hardware

import (
	"context"
	"sync"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
)

// DefaultEventBufferSize bounds each subscriber's backlog. A slow consumer
// (a stalled protocol handler, a paused client) falls behind rather than
// blocking the hardware's read loop; once full, the oldest unread event is
// overwritten (spec §4.4's "drop on lag, never block the producer").
const DefaultEventBufferSize uint32 = 256

// subscriber is one consumer's private overlapped ring buffer plus a
// non-blocking wakeup signal: a buffer+stop/done channel shape
// generalized to fan-out instead of a single collector goroutine.
type subscriber[T any] struct {
	buffer mpmc.RichOverlappedRingBuffer[T]
	signal chan struct{}
}

// Broadcast fans values of T out to any number of subscribers, each with
// its own bounded backlog. Publish never blocks on a slow subscriber.
// Parameterized so the same bounded-drop-on-lag plumbing serves both
// hardware.Event (per-device notifications) and devicemanager.Event
// (device-list change notifications).
type Broadcast[T any] struct {
	logger *logrus.Logger

	mu          sync.RWMutex
	subscribers map[*subscriber[T]]struct{}
	bufferSize  uint32
}

// NewBroadcast constructs an empty Broadcast. bufferSize of 0 uses
// DefaultEventBufferSize.
func NewBroadcast[T any](logger *logrus.Logger, bufferSize uint32) *Broadcast[T] {
	if logger == nil {
		logger = logrus.New()
	}
	if bufferSize == 0 {
		bufferSize = DefaultEventBufferSize
	}
	return &Broadcast[T]{
		logger:      logger,
		subscribers: make(map[*subscriber[T]]struct{}),
		bufferSize:  bufferSize,
	}
}

// Subscription is a single consumer's handle on a Broadcast.
type Subscription[T any] struct {
	b   *Broadcast[T]
	sub *subscriber[T]
}

// Subscribe registers a new consumer and returns its Subscription. Callers
// must call Unsubscribe when done to release the backing buffer.
func (b *Broadcast[T]) Subscribe() *Subscription[T] {
	sub := &subscriber[T]{
		buffer: mpmc.NewOverlappedRingBuffer[T](b.bufferSize),
		signal: make(chan struct{}, 1),
	}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return &Subscription[T]{b: b, sub: sub}
}

// Unsubscribe removes the subscription from its Broadcast. Safe to call
// more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.b.mu.Lock()
	delete(s.b.subscribers, s.sub)
	s.b.mu.Unlock()
}

// Next blocks until a value is available or ctx is cancelled. ok is false
// only when ctx ends first. Unsubscribe does not wake a blocked Next.
func (s *Subscription[T]) Next(ctx context.Context) (T, bool) {
	for {
		if v, err := s.sub.buffer.Dequeue(); err == nil {
			return v, true
		}
		var zero T
		select {
		case <-s.sub.signal:
			continue
		case <-ctx.Done():
			return zero, false
		}
	}
}

// Publish delivers v to every current subscriber. A subscriber whose
// buffer is full drops its oldest unread value rather than stalling this
// call; the drop is logged at debug level.
func (b *Broadcast[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		overwritten, err := sub.buffer.EnqueueM(v)
		if err != nil {
			b.logger.WithField("error", err).Error("broadcast: enqueue failed")
			continue
		}
		if overwritten > 0 {
			b.logger.WithField("dropped", overwritten).Debug("broadcast: slow subscriber dropped events")
		}
		select {
		case sub.signal <- struct{}{}:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscriptions, for tests
// and diagnostics.
func (b *Broadcast[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
