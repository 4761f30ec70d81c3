package mount

import (
	"container/list"
	"context"
	"errors"
	"sync"

	events "github.com/docker/go-events"

	"github.com/wildland-go/wildland/internal/wlcontext"
)

// errQueueClosed is returned by Write once the queue has been closed.
var errQueueClosed = errors.New("mount: event queue closed")

// eventQueue accepts manifest-change events into an unbounded in-process
// queue for asynchronous delivery to a sink, exactly the shape of
// notifications/sinks.go's eventQueue, adapted so the watch daemon can
// enqueue fsnotify-derived events from many watched directories without
// blocking on however long a mount/unmount takes to run.
type eventQueue struct {
	sink   events.Sink
	events *list.List
	cond   *sync.Cond
	mu     sync.Mutex
	closed bool
}

// newEventQueue returns a queue delivering to sink, starting its delivery
// goroutine immediately.
func newEventQueue(sink events.Sink) *eventQueue {
	eq := &eventQueue{sink: sink, events: list.New()}
	eq.cond = sync.NewCond(&eq.mu)
	go eq.run()
	return eq
}

// Write enqueues event, failing only if the queue has been closed.
func (eq *eventQueue) Write(event events.Event) error {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	if eq.closed {
		return errQueueClosed
	}
	eq.events.PushBack(event)
	eq.cond.Signal()
	return nil
}

// Close stops the delivery goroutine after flushing anything queued.
func (eq *eventQueue) Close() error {
	eq.mu.Lock()
	if eq.closed {
		eq.mu.Unlock()
		return errQueueClosed
	}
	eq.closed = true
	eq.cond.Signal()
	eq.cond.Wait()
	eq.mu.Unlock()
	return eq.sink.Close()
}

func (eq *eventQueue) run() {
	for {
		event := eq.next()
		if event == nil {
			return
		}
		if err := eq.sink.Write(event); err != nil {
			wlcontext.GetLogger(context.Background()).Warnf("mount: event dropped: %v", err)
		}
	}
}

func (eq *eventQueue) next() events.Event {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	for eq.events.Len() < 1 {
		if eq.closed {
			eq.cond.Broadcast()
			return nil
		}
		eq.cond.Wait()
	}
	front := eq.events.Front()
	event := front.Value.(events.Event)
	eq.events.Remove(front)
	return event
}
