package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/cubepio/internal/logfields"
)

// Outbox decouples emitters from subscribers: Push never blocks, and a single
// drain goroutine publishes queued events to the Bus in FIFO order.
type Outbox struct {
	bus *Bus

	mu     sync.Mutex
	queue  []ProjectEvent
	closed bool
	signal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOutbox starts the drain goroutine for bus.
func NewOutbox(bus *Bus) *Outbox {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Outbox{
		bus:    bus,
		signal: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go o.drain()
	return o
}

// Push enqueues evt. Events pushed after Close are dropped.
func (o *Outbox) Push(evt ProjectEvent) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, evt)
	o.mu.Unlock()
	o.wake()
}

// Pending returns the number of queued, not yet published events.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *Outbox) wake() {
	select {
	case o.signal <- struct{}{}:
	default:
	}
}

func (o *Outbox) next() ([]ProjectEvent, bool) {
	for {
		o.mu.Lock()
		if len(o.queue) > 0 {
			batch := o.queue
			o.queue = nil
			o.mu.Unlock()
			return batch, true
		}
		closed := o.closed
		o.mu.Unlock()
		if closed {
			return nil, false
		}
		<-o.signal
	}
}

func (o *Outbox) drain() {
	defer close(o.done)
	for {
		batch, ok := o.next()
		if !ok {
			return
		}
		for _, evt := range batch {
			if err := o.bus.Publish(o.ctx, evt); err != nil {
				if errors.Is(err, ErrBusClosed) {
					continue
				}
				slog.Warn("Dropping event",
					slog.String("kind", evt.Kind()),
					logfields.ProjectID(evt.ProjectID().String()),
					logfields.Error(err))
			}
		}
	}
}

// Close stops accepting events and waits until the queue is flushed. When ctx
// ends first, blocked deliveries are abandoned and ctx.Err is returned.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wake()

	select {
	case <-o.done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-o.done
		return ctx.Err()
	}
}
