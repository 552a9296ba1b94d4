package audit

import (
	"log"
	"sync"
)

type Event struct {
	ServiceCenterID uint
	UserID          *uint
	// Actor is customer, staff or system. Empty means derive it from UserID.
	Actor           string
	Action          string
	Entity          string
	EntityID        *uint
	Metadata        any
}

type Sink interface {
	Log(ev Event) error
}

// Dispatcher writes audit events off the request path. When the queue is
// full events are dropped; audit never fails an operation.
type Dispatcher struct {
	sink  Sink
	queue chan Event
	once  sync.Once
	done  chan struct{}
}

func NewDispatcher(sink Sink) *Dispatcher {
	d := &Dispatcher{
		sink:  sink,
		queue: make(chan Event, 256),
		done:  make(chan struct{}),
	}

	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for ev := range d.queue {
		if err := d.sink.Log(ev); err != nil {
			log.Printf("[audit] %s %s: %v", ev.Action, ev.Entity, err)
		}
	}
}

func (d *Dispatcher) Dispatch(ev Event) {
	if d == nil {
		return
	}
	defer func() {
		// Dispatch after Close.
		if recover() != nil {
			log.Printf("[audit] dispatcher closed, dropping %s", ev.Action)
		}
	}()

	select {
	case d.queue <- ev:
	default:
		log.Printf("[audit] queue full, dropping %s", ev.Action)
	}
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
		<-d.done
	})
}
