package services

import (
	"sync"

	"github.com/ReylordDev/psycluster/internal/core/ports/driving"
)

// Ensure PubSub implements the interface.
var _ driving.Broker = (*PubSub)(nil)

// PubSub is the in-process subscription manager. Each subscriber owns
// an ordered queue pumped by its own goroutine, so publishing never
// blocks on a slow listener and no listener steals events from
// another.
type PubSub struct {
	mu     sync.RWMutex
	closed bool
	subs   map[string][]*subscription
}

// NewPubSub creates an empty subscription manager.
func NewPubSub() *PubSub {
	return &PubSub{
		subs: make(map[string][]*subscription),
	}
}

// Publish delivers the payload to every current subscriber of the
// channel, in publish order relative to other events on the same
// channel.
func (p *PubSub) Publish(channel string, payload any) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	for _, sub := range p.subs[channel] {
		sub.enqueue(driving.Event{Channel: channel, Payload: payload})
	}
}

// Subscribe registers a listener on a channel. There is no replay:
// events published before Subscribe returns are never delivered.
func (p *PubSub) Subscribe(channel string) driving.Subscription {
	sub := &subscription{
		broker:  p,
		channel: channel,
		out:     make(chan driving.Event),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		// A subscription on a closed broker delivers nothing.
		close(sub.out)
		return sub
	}
	p.subs[channel] = append(p.subs[channel], sub)
	p.mu.Unlock()

	go sub.pump()
	return sub
}

// Close cancels every subscription. Further publishes are dropped.
func (p *PubSub) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	var all []*subscription
	for _, subs := range p.subs {
		all = append(all, subs...)
	}
	p.subs = make(map[string][]*subscription)
	p.mu.Unlock()

	for _, sub := range all {
		sub.Cancel()
	}
}

// remove detaches a cancelled subscription from the fan-out set.
func (p *PubSub) remove(target *subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := p.subs[target.channel]
	for i, sub := range subs {
		if sub == target {
			p.subs[target.channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// subscription is one listener's handle. Events accumulate in queue
// under mu and are handed to the listener by the pump goroutine.
type subscription struct {
	broker  *PubSub
	channel string

	mu    sync.Mutex
	queue []driving.Event

	out  chan driving.Event
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// Ensure subscription implements the interface.
var _ driving.Subscription = (*subscription)(nil)

// Events returns the ordered delivery stream.
func (s *subscription) Events() <-chan driving.Event {
	return s.out
}

// Cancel stops deliveries. Idempotent; an in-flight delivery may still
// complete, but no new one starts.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.done)
	})
}

// enqueue appends an event and wakes the pump.
func (s *subscription) enqueue(ev driving.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump drains the queue into the out channel until cancelled.
func (s *subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		var next *driving.Event
		if len(s.queue) > 0 {
			next = &s.queue[0]
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- *next:
		case <-s.done:
			return
		}
	}
}
