// Package realtime relays lifecycle and progress events to connected clients.
package realtime

import (
	"context"
	"strings"
	"sync"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

const defaultBufferSize = 64

var _ ports.Publisher = (*Broker)(nil)

type subscription struct {
	topics []string
}

// matches reports whether topic is one of the subscribed topics or nested
// under one, so "app" matches "app:42". No topics means everything.
func (s subscription) matches(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	for _, t := range s.topics {
		if topic == t || strings.HasPrefix(topic, t+":") {
			return true
		}
	}
	return false
}

// Broker is a topic-aware pub/sub event broker.
// There is no replay: a subscriber only sees events published while it is subscribed.
type Broker struct {
	subs       map[chan domain.Event]subscription
	mu         sync.RWMutex
	done       chan struct{}
	bufferSize int
}

func NewBroker() *Broker {
	return NewBrokerWithBuffer(defaultBufferSize)
}

func NewBrokerWithBuffer(size int) *Broker {
	return &Broker{
		subs:       make(map[chan domain.Event]subscription),
		done:       make(chan struct{}),
		bufferSize: size,
	}
}

// Subscribe creates a subscription to the given topics, or to all topics
// when none are given. The channel is closed when ctx is cancelled.
func (b *Broker) Subscribe(ctx context.Context, topics ...string) <-chan domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan domain.Event)
		close(ch)
		return ch
	default:
	}

	sub := make(chan domain.Event, b.bufferSize)
	b.subs[sub] = subscription{topics: append([]string(nil), topics...)}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()

		select {
		case <-b.done:
			return
		default:
		}

		delete(b.subs, sub)
		close(sub)
	}()

	return sub
}

// Publish delivers event to matching subscribers.
// Non-blocking: drops events if subscriber channel is full.
func (b *Broker) Publish(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	for ch, sub := range b.subs {
		if !sub.matches(event.Topic) {
			continue
		}
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts down the broker and all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	close(b.done)
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
