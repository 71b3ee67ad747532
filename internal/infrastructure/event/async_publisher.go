package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/stocksync/internal/domain/shared"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the async queue cannot take another batch
	ErrQueueFull = errors.New("event queue full")
	// ErrPublisherClosed is returned after Stop
	ErrPublisherClosed = errors.New("event publisher closed")
)

// DefaultPublishTimeout bounds one delivery attempt of a queued batch
const DefaultPublishTimeout = 5 * time.Second

type queuedBatch struct {
	ctx    context.Context
	events []shared.DomainEvent
}

// AsyncPublisher decouples writers from a slow or unavailable downstream
// publisher. Publish never blocks: batches go onto a bounded queue drained by
// one worker, and a full queue drops the batch.
type AsyncPublisher struct {
	next    shared.EventPublisher
	queue   chan queuedBatch
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewAsyncPublisher creates a publisher with room for queueSize batches
func NewAsyncPublisher(next shared.EventPublisher, queueSize int, logger *zap.Logger) *AsyncPublisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &AsyncPublisher{
		next:    next,
		queue:   make(chan queuedBatch, queueSize),
		timeout: DefaultPublishTimeout,
		logger:  logger.Named("async_publisher"),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery worker
func (p *AsyncPublisher) Start() {
	go p.drain()
}

// Publish enqueues events without waiting for delivery
func (p *AsyncPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	batch := queuedBatch{ctx: context.WithoutCancel(ctx), events: events}
	select {
	case p.queue <- batch:
		return nil
	default:
		p.dropped.Add(int64(len(events)))
		return ErrQueueFull
	}
}

// Stop stops accepting events and waits for the queue to drain or ctx to end
func (p *AsyncPublisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		p.logger.Info("Async publisher stopped",
			zap.Int64("dropped", p.dropped.Load()),
			zap.Int64("failed", p.failed.Load()),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many events were discarded because the queue was full
func (p *AsyncPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Failed returns how many events the downstream publisher rejected
func (p *AsyncPublisher) Failed() int64 {
	return p.failed.Load()
}

func (p *AsyncPublisher) drain() {
	defer close(p.done)
	for batch := range p.queue {
		ctx, cancel := context.WithTimeout(batch.ctx, p.timeout)
		err := p.next.Publish(ctx, batch.events...)
		cancel()
		if err != nil {
			p.failed.Add(int64(len(batch.events)))
			p.logger.Warn("Async event delivery failed",
				zap.Int("count", len(batch.events)),
				zap.String("event_type", batch.events[0].EventType()),
				zap.Error(err),
			)
		}
	}
}

var _ shared.EventPublisher = (*AsyncPublisher)(nil)
