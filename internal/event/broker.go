package event

import (
	"errors"
	"sync"
)

// ErrNilEvent is returned by Publish when handed a nil event. Producers are
// expected to filter empty payloads before publishing; the broker only
// guards against the programming error.
var ErrNilEvent = errors.New("event: publish of nil event")

// Broker is a topic-keyed broadcast hub. Every subscriber owns its own
// unbounded queue; Publish copies the event reference into each queue
// registered under the topic, so a slow consumer never holds up a fast one.
//
// A subscriber registered after an event was published never sees that
// event. There is no backlog or replay; a publish racing a Subscribe may or
// may not be observed by the new subscriber.
type Broker struct {
	mu   sync.Mutex
	subs map[Topic][]*Subscription
}

// Subscription pairs a topic with the queue delivery happens into.
type Subscription struct {
	topic Topic
	queue *Queue
}

func (s *Subscription) Topic() Topic  { return s.topic }
func (s *Subscription) Queue() *Queue { return s.queue }

// QueueSize is one monitor sample: pending events for one subscription.
type QueueSize struct {
	Topic Topic
	Size  int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[Topic][]*Subscription)}
}

// Subscribe registers a fresh queue under topic and returns its handle.
// Safe to call concurrently with Publish.
func (b *Broker) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{topic: topic, queue: NewQueue()}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes sub from future publishes. Events already queued for
// it stay consumable until drained.
func (b *Broker) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.topic]
	for i, s := range list {
		if s == sub {
			b.subs[sub.topic] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Publish appends ev to every queue currently subscribed to its topic and
// returns immediately; queues are unbounded so delivery never blocks.
// Publishing to a topic nobody subscribed to is a silent no-op.
//
// The broker lock is held across the fan-out. Appends are non-blocking, so
// this is cheap, and it is what makes the ordering guarantee hold: every
// subscriber of a topic observes the same global publish order even with
// concurrent publishers.
func (b *Broker) Publish(ev Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[ev.Topic()] {
		sub.queue.Push(ev)
	}
	return nil
}

// QueueSizes samples the pending length of every subscriber queue without
// consuming anything. Used by the monitor worker.
func (b *Broker) QueueSizes() []QueueSize {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sizes []QueueSize
	for topic, list := range b.subs {
		for _, sub := range list {
			sizes = append(sizes, QueueSize{Topic: topic, Size: sub.queue.Len()})
		}
	}
	return sizes
}
