// Package events implements the typed publish/subscribe channel that every
// subsystem publishes progress and lifecycle notifications through (design
// §6.4). Delivery is at-least-once, best-effort: a slow subscriber has its
// events coalesced rather than stalling the publisher.
package events

import (
	"log/slog"
	"sync"
)

// Topic names a stream of events. Subsystems publish under their own
// topic; subscribers pick the topics they care about.
type Topic string

// Topics
const (
	TopicLogin Topic = "login"
	TopicTransfer Topic = "transfer"
	TopicQueue Topic = "queue"
	TopicSync Topic = "sync"
	TopicMapping Topic = "mapping"
	TopicIndex Topic = "index"
	TopicScheduler Topic = "scheduler"
)

// Event is the envelope delivered to subscribers. Kind is a short,
// topic-scoped name ("Progress", "Completed", …); Payload carries the
// topic-specific struct (callers type-assert).
type Event struct {
	Topic   Topic
	Kind    string
	Payload any
}

// bufferSize bounds each subscriber's channel. Progress events beyond
// this rate are coalesced (oldest dropped) per the at-least-once,
// best-effort delivery contract.
const bufferSize = 256

// Bus fans out events to subscribers. One Bus is shared by an App; every
// subsystem is constructed with a reference to it.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
	log  *slog.Logger
}

type subscriber struct {
	topics map[Topic]bool
	ch chan Event
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{subs: make(map[int]*subscriber), log: logger}
}

// Subscription is an active subscriber handle. Call Close to unsubscribe.
type Subscription struct {
	bus *Bus
	id  int
	ch <-chan Event
}

// Events returns the channel of events matching the subscription's topics.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unsubscribes and releases the channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if sub, ok := s.bus.subs[s.id]; ok {
		close(sub.ch)
		delete(s.bus.subs, s.id)
	}
}

// Subscribe registers a new subscriber for the given topics. Passing no
// topics subscribes to all topics.
func (b *Bus) Subscribe(topics...Topic) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := make(map[Topic]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}

	id := b.next
	b.next++

	sub := &subscriber{topics: set, ch: make(chan Event, bufferSize)}
	b.subs[id] = sub

	return &Subscription{bus: b, id: id, ch: sub.ch}
}

// Publish delivers ev to every subscriber whose topic set matches (or is
// empty, meaning "all topics"). Publication never blocks on a slow
// subscriber: when a subscriber's buffer is full, the oldest queued event
// is dropped to make room, per the best-effort delivery contract.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if len(sub.topics) > 0 && !sub.topics[ev.Topic] {
			continue
		}

		select {
		case sub.ch <- ev:
		default:
			// Buffer full: drop the oldest event to make room, then enqueue.
			select {
			case <-sub.ch:
			default:
			}

			select {
			case sub.ch <- ev:
			default:
				b.log.Warn("events: subscriber buffer saturated, dropping event",
					slog.String("topic", string(ev.Topic)), slog.String("kind", ev.Kind))
			}
		}
	}
}
