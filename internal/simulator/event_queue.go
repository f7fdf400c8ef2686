package simulator

import (
	"container/heap"
	"time"

	"github.com/chrisdamba/foodispatch/internal/models"
)

const (
	EventConfirmOrder  = "ConfirmOrder"
	EventOfferResponse = "OfferResponse"
	EventDeliverOrder  = "DeliverOrder"
	EventCancelOrder   = "CancelOrder"
	EventRetryScan     = "RetryScan"
)

// Event represents a simulation event
type Event struct {
	Time      time.Time
	Type      string
	OrderID   string
	PartnerID string
	Pickup    *models.Location
	Dropoff   *models.Location
	seq       int64
}

// EventQueue is a priority queue of events. Events due at the same instant come out
// in the order they were enqueued.
type EventQueue struct {
	events eventHeap
	seq    int64
}

// eventHeap implements heap.Interface and holds Events
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Time.Equal(h[j].Time) {
		return h[i].seq < h[j].seq
	}
	return h[i].Time.Before(h[j].Time)
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

func (eq *EventQueue) Enqueue(event *Event) {
	eq.seq++
	event.seq = eq.seq
	heap.Push(&eq.events, event)
}

// Dequeue removes and returns the earliest event from the queue
func (eq *EventQueue) Dequeue() *Event {
	if len(eq.events) == 0 {
		return nil
	}
	return heap.Pop(&eq.events).(*Event)
}

// Peek returns the earliest event without removing it
func (eq *EventQueue) Peek() *Event {
	if len(eq.events) == 0 {
		return nil
	}
	return eq.events[0]
}

func (eq *EventQueue) Len() int {
	return len(eq.events)
}
