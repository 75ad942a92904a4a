package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrDispatcherClosed is returned when publishing after Close.
	ErrDispatcherClosed = errors.New("events: dispatcher closed")
	// ErrQueueFull is returned when the async queue has no free slot.
	ErrQueueFull = errors.New("events: queue full")
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	Close(ctx context.Context) error
}

type registry struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

func (r *registry) Subscribe(eventType EventType, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[eventType] = append(r.listeners[eventType], handler)
}

func (r *registry) handlers(eventType EventType) []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventHandler{}, r.listeners[eventType]...)
}

// invoke runs every handler for event; failures and panics are logged and dropped.
func (r *registry) invoke(ctx context.Context, logger *zap.Logger, event Event) {
	for _, handler := range r.handlers(event.Type) {
		if err := safeCall(ctx, handler, event); err != nil {
			logger.Error("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.String("trace_id", event.TraceID),
				zap.Error(err))
		}
	}
}

func safeCall(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

// inMemoryDispatcher invokes handlers synchronously on Publish.
type inMemoryDispatcher struct {
	registry
	logger *zap.Logger
}

// NewInMemoryDispatcher creates a synchronous dispatcher.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inMemoryDispatcher{
		registry: registry{listeners: make(map[EventType][]EventHandler)},
		logger:   logger,
	}
}

func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.invoke(ctx, d.logger, event)
	return nil
}

func (d *inMemoryDispatcher) Close(context.Context) error {
	return nil
}

type queued struct {
	ctx   context.Context
	event Event
}

// AsyncDispatcher queues events to a fixed pool of workers.
type AsyncDispatcher struct {
	registry
	logger *zap.Logger
	queue  chan queued
	wg     sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
}

// NewAsyncDispatcher starts workers goroutines consuming a queue of queueSize events.
func NewAsyncDispatcher(logger *zap.Logger, workers, queueSize int) *AsyncDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &AsyncDispatcher{
		registry: registry{listeners: make(map[EventType][]EventHandler)},
		logger:   logger,
		queue:    make(chan queued, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *AsyncDispatcher) run() {
	defer d.wg.Done()
	for item := range d.queue {
		d.invoke(item.ctx, d.logger, item.event)
	}
}

// Publish enqueues event without blocking. Handlers receive a context that
// keeps ctx values but is never cancelled with it.
func (d *AsyncDispatcher) Publish(ctx context.Context, event Event) error {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()

	if d.closed {
		d.logger.Warn("dropping event after dispatcher close",
			zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		d.logger.Warn("dropping event, queue full",
			zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx to end.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.closeMu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("events: drain interrupted: %w", ctx.Err())
	}
}
