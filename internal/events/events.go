// Package events carries pipeline progress from the engine to whoever renders it.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/models"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventStep     EventType = "step"     // a pipeline step started or finished
	EventPoll     EventType = "poll"     // one status poll of a job or order
	EventOrder    EventType = "order"    // an order reached a final outcome
	EventTransfer EventType = "transfer" // a file download finished
	EventPublish  EventType = "publish"  // a file was copied to object storage
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// StepEvent marks the start (Done false) or end of a pipeline step.
type StepEvent struct {
	BaseEvent
	Step     string
	Done     bool
	Duration time.Duration
	Error    error
}

// PollEvent reports one status reading.
type PollEvent struct {
	BaseEvent
	Op      string // "job" or "order <id>"
	Attempt int
	Status  models.Status
	Next    time.Duration // sleep before the next poll, 0 when done
	Error   error
}

// OrderEvent reports the outcome of one order.
type OrderEvent struct {
	BaseEvent
	Index    int
	Total    int
	Filename string
	OrderID  string
	Status   models.Status
	Error    error
}

// TransferEvent reports the outcome of one download.
type TransferEvent struct {
	BaseEvent
	Index   int
	Path    string
	Bytes   int64
	Elapsed time.Duration
	Error   error
}

// PublishEvent reports one object-storage copy.
type PublishEvent struct {
	BaseEvent
	Backend string
	Path    string
	Remote  string
	Error   error
}

// EventBus fans events out to subscribers without ever blocking the publisher.
// A nil *EventBus accepts and drops everything.
type EventBus struct {
	subscribers   map[EventType][]chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// Publish sends an event to all subscribers. Full channels drop the event.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	if eb == nil {
		return
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
}

// PublishStep publishes a StepEvent.
func (eb *EventBus) PublishStep(step string, done bool, d time.Duration, err error) {
	eb.Publish(&StepEvent{BaseEvent: base(EventStep), Step: step, Done: done, Duration: d, Error: err})
}

// PublishPoll publishes a PollEvent.
func (eb *EventBus) PublishPoll(op string, attempt int, status models.Status, next time.Duration, err error) {
	eb.Publish(&PollEvent{BaseEvent: base(EventPoll), Op: op, Attempt: attempt, Status: status, Next: next, Error: err})
}

// PublishOrder publishes an OrderEvent.
func (eb *EventBus) PublishOrder(index, total int, filename, orderID string, status models.Status, err error) {
	eb.Publish(&OrderEvent{
		BaseEvent: base(EventOrder),
		Index:     index,
		Total:     total,
		Filename:  filename,
		OrderID:   orderID,
		Status:    status,
		Error:     err,
	})
}

// PublishTransfer publishes a TransferEvent.
func (eb *EventBus) PublishTransfer(index int, path string, bytes int64, elapsed time.Duration, err error) {
	eb.Publish(&TransferEvent{BaseEvent: base(EventTransfer), Index: index, Path: path, Bytes: bytes, Elapsed: elapsed, Error: err})
}

// PublishPublish publishes a PublishEvent.
func (eb *EventBus) PublishPublish(backend, path, remote string, err error) {
	eb.Publish(&PublishEvent{BaseEvent: base(EventPublish), Backend: backend, Path: path, Remote: remote, Error: err})
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	if eb == nil {
		return 0
	}
	return eb.droppedEvents.Load()
}
