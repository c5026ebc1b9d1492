package watcher

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"logvault/pkg/models"
)

const subscriberBuffer = 64

var droppedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "logvault_feed_dropped_events_total",
	Help: "Change events dropped because a subscriber was not keeping up.",
})

// Event types
const (
	EventUpdated = "updated"
	EventRemoved = "removed"
)

// Event announces a change to a log file
type Event struct {
	Type string                    `json:"type"`
	Name string                    `json:"name"`
	File *models.LogFileDescriptor `json:"file,omitempty"` // nil for removals
	At   time.Time                 `json:"at"`
}

// Feed fans change events out to subscribers. Slow subscribers lose events
// instead of blocking the publisher.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	dropped     int64
	closed      bool
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered channel receiving every future event, and a
// function that unsubscribes and closes it
func (f *Feed) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	f.mu.Lock()
	if f.closed {
		close(ch)
	} else {
		f.subscribers[ch] = struct{}{}
	}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { f.unsubscribe(ch) })
	}
}

func (f *Feed) unsubscribe(ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subscribers[ch]; ok {
		delete(f.subscribers, ch)
		close(ch)
	}
}

// Publish delivers ev to every subscriber with room in its buffer
func (f *Feed) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
			f.dropped++
			droppedEventsTotal.Inc()
			slog.Debug("dropped change event for slow subscriber", "file", ev.Name, "dropped", f.dropped)
		}
	}
}

// Dropped returns the number of events lost to slow subscribers
func (f *Feed) Dropped() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

// Subscribers returns the current subscriber count
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// Close closes every subscriber channel. Later subscriptions are closed immediately.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		close(ch)
	}
	f.subscribers = make(map[chan Event]struct{})
	f.closed = true
}
