// Package notifications relays rain predictions to the downstream
// decision-support system. Delivery is best-effort: one attempt per payload,
// performed by a fixed worker pool fed from a bounded queue, never blocking
// the request that submitted it.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"wpre/internal/types"
)

// Defaults for the worker pool.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 64
)

// Delivery outcomes reported to metrics.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	DropQueueFull = "queue_full"
	DropClosed    = "closed"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	// The payload is rejected, not retried.
	ErrQueueFull = errors.New("notification queue is full")
	// ErrDispatcherClosed is returned by Submit after Shutdown.
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)

// Sender performs one delivery attempt.
type Sender interface {
	Send(ctx context.Context, payload types.NotificationPayload) error
}

// DeliveryMetrics receives delivery outcomes.
type DeliveryMetrics interface {
	RecordDelivery(ctx context.Context, result string, latency time.Duration)
	RecordDropped(ctx context.Context, reason string)
}

// DispatcherConfig sizes the pool.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

type job struct {
	id       string
	payload  types.NotificationPayload
	enqueued time.Time
}

// Dispatcher owns the delivery queue and its workers. Create it once at
// start-up, call Start, and Shutdown on exit.
type Dispatcher struct {
	sender  Sender
	cfg     DispatcherConfig
	logger  *slog.Logger
	metrics DeliveryMetrics

	queue chan job

	mu      sync.RWMutex
	closed  bool
	started bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher creates a stopped dispatcher. metrics may be nil.
func NewDispatcher(sender Sender, cfg DispatcherConfig, logger *slog.Logger, metrics DeliveryMetrics) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender:  sender,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan job, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("notification dispatcher started",
		"workers", d.cfg.Workers,
		"queue_size", d.cfg.QueueSize,
	)
}

// Submit enqueues the payload and returns immediately. It never waits for
// a free slot or for delivery.
func (d *Dispatcher) Submit(payload types.NotificationPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped(payload, DropClosed)
		return ErrDispatcherClosed
	}

	j := job{id: uuid.NewString(), payload: payload, enqueued: time.Now()}
	select {
	case d.queue <- j:
		d.logger.Debug("notification queued",
			"job_id", j.id,
			"request_id", payload.RequestID,
			"depth", len(d.queue),
		)
		return nil
	default:
		d.dropped(payload, DropQueueFull)
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, d.cfg.QueueSize)
	}
}

// QueueDepth reports how many payloads are waiting for a worker.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// Shutdown stops accepting work and waits for queued payloads to be
// delivered. If ctx expires first, in-flight deliveries are cancelled and
// ctx.Err() is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		d.logger.Warn("notification dispatcher stopped before the queue drained")
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(id, j)
	}
}

func (d *Dispatcher) deliver(worker int, j job) {
	ctx := types.WithRequestID(d.ctx, j.payload.RequestID)
	log := d.logger.With(
		"job_id", j.id,
		"request_id", j.payload.RequestID,
		"endpoint", j.payload.DSSEndpoint,
		"worker", worker,
	)

	start := time.Now()
	err := d.send(ctx, j.payload)
	latency := time.Since(start)

	result := ResultSuccess
	if err != nil {
		result = ResultFailed
		log.WarnContext(ctx, "notification delivery failed",
			"error", err,
			"latency_ms", latency.Milliseconds(),
		)
	} else {
		log.InfoContext(ctx, "notification delivered",
			"latency_ms", latency.Milliseconds(),
			"queued_ms", start.Sub(j.enqueued).Milliseconds(),
		)
	}
	if d.metrics != nil {
		d.metrics.RecordDelivery(ctx, result, latency)
	}
}

// send isolates a panicking sender so the worker survives.
func (d *Dispatcher) send(ctx context.Context, p types.NotificationPayload) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sender panic: %v", rec)
		}
	}()
	return d.sender.Send(ctx, p)
}

func (d *Dispatcher) dropped(p types.NotificationPayload, reason string) {
	d.logger.Warn("notification dropped",
		"request_id", p.RequestID,
		"reason", reason,
	)
	if d.metrics != nil {
		d.metrics.RecordDropped(context.Background(), reason)
	}
}
