package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/keynotify/internal/logging"
	"github.com/jonboulle/clockwork"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Clock stamps events that arrive without a Timestamp. Nil means the real clock.
	Clock clockwork.Clock
	// OnDrop runs on the emitting goroutine for every event lost to a full buffer.
	OnDrop func(Event)
}

// Dispatcher relays session events to a sink from one goroutine, so a login
// or logout never waits on sink I/O unless DropIfFull is false and the queue
// is full.
type Dispatcher struct {
	sink    Sink
	clock   clockwork.Clock
	onDrop  func(Event)
	dropOK  bool
	queue   chan Event
	stop    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

// NewDispatcher returns nil when cfg is disabled; a nil *Dispatcher accepts
// and discards every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	d := &Dispatcher{
		sink:   sink,
		clock:  clock,
		onDrop: cfg.OnDrop,
		dropOK: cfg.DropIfFull,
		queue:  make(chan Event, size),
		stop:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		default:
			return
		}
	}
}

// Emit queues ev. A zero Timestamp is taken from the dispatcher clock and an
// empty RequestID from the request id carried by ctx.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.clock.Now().UTC()
	}
	if ev.RequestID == "" {
		if id, ok := logging.RequestID(ctx); ok {
			ev.RequestID = id
		}
	}

	if d.dropOK {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
			if d.onDrop != nil {
				d.onDrop(ev)
			}
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close delivers what is already queued and stops the relay goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped reports events lost to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
