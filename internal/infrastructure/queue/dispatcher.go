package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/handyfix/marketplace-engine/internal/core/domain"
	"github.com/handyfix/marketplace-engine/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
	maxAttempts    = 3
	retryBackoff   = 200 * time.Millisecond
)

// ErrQueueFull is returned by Enqueue when the booking's shard is saturated.
// The webhook caller answers 503 so the gateway redelivers later.
var ErrQueueFull = errors.New("dispatch queue full")

// ResultFunc observes the outcome of each processed event.
type ResultFunc func(event ports.GatewayEventInput, err error)

// Dispatcher routes gateway events to a fixed set of workers by booking id,
// so confirmations for one booking are processed one at a time and in
// arrival order.
type Dispatcher struct {
	workers  []chan ports.GatewayEventInput
	service  ports.GatewayEventService
	onResult ResultFunc
	backoff  time.Duration
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used. onResult may be nil.
func NewDispatcher(numWorkers int, service ports.GatewayEventService, onResult ResultFunc, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan ports.GatewayEventInput, numWorkers),
		service:  service,
		onResult: onResult,
		backoff:  retryBackoff,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.GatewayEventInput, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runWorker(ctx, i, ch)
		}()
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands an event to the worker owning its booking. It never blocks:
// a full shard returns ErrQueueFull.
func (d *Dispatcher) Enqueue(event ports.GatewayEventInput) error {
	select {
	case d.workers[d.shardIndex(event.BookingID)] <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// shardIndex maps a booking id deterministically to a worker index.
func (d *Dispatcher) shardIndex(bookingID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(bookingID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.GatewayEventInput) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			err := d.process(ctx, event)
			if err != nil {
				d.log.Error().Err(err).
					Str("event_id", event.EventID).
					Str("booking_id", event.BookingID).
					Int("worker_id", id).
					Msg("gateway event processing failed")
			}
			if d.onResult != nil {
				d.onResult(event, err)
			}
		}
	}
}

// process retries transient failures (held lock, gateway outage) in place so
// the booking's later events keep their order behind this one.
func (d *Dispatcher) process(ctx context.Context, event ports.GatewayEventInput) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = d.service.Process(ctx, event)
		if err == nil || !domain.Retryable(err) || attempt == maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * d.backoff):
		}
	}
	return err
}
