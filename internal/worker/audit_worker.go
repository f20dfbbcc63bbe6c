package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/secure-api/internal/events"
	"github.com/spec-kit/secure-api/internal/service"
)

var (
	// ErrQueueFull is returned to the dispatcher when an event had to be dropped.
	ErrQueueFull = errors.New("audit queue full")
	// ErrStopped is returned for events published after Stop.
	ErrStopped = errors.New("audit worker stopped")
)

const defaultQueueSize = 256

// AuditWorker moves audit handling off the request path: published events are queued
// and handled in order by one goroutine.
type AuditWorker struct {
	audit  *service.AuditService
	logger *zap.Logger
	queue  chan events.Event
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// StartAuditWorker subscribes to every audit event and starts the worker goroutine.
// Call Stop to drain the queue and end it.
func StartAuditWorker(dispatcher events.Dispatcher, audit *service.AuditService, logger *zap.Logger, queueSize int) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	w := &AuditWorker{
		audit:  audit,
		logger: logger,
		queue:  make(chan events.Event, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, t := range events.AllTypes {
		dispatcher.Subscribe(t, w.enqueue)
	}
	go w.run()
	return w
}

func (w *AuditWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case <-w.stop:
		return ErrStopped
	default:
	}
	select {
	case w.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *AuditWorker) run() {
	defer close(w.done)
	for {
		select {
		case event := <-w.queue:
			w.handle(event)
		case <-w.stop:
			for {
				select {
				case event := <-w.queue:
					w.handle(event)
				default:
					return
				}
			}
		}
	}
}

func (w *AuditWorker) handle(event events.Event) {
	if err := w.audit.Handle(context.Background(), event); err != nil {
		w.logger.Warn("audit event not recorded", zap.String("event_id", event.ID), zap.Error(err))
	}
}

// Stop drains queued events and waits for the worker to exit, or for ctx.
func (w *AuditWorker) Stop(ctx context.Context) error {
	w.once.Do(func() { close(w.stop) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
