package msg

import (
	"sync"

	"github.com/google/uuid"
)

// Topic names a class of published messages.
type Topic int

// Topics
const (
	Status Topic = iota
	Transition
)

// Publisher is an interface for objects that allow subscribtion to their events
type Publisher interface {
	Subscribe(uuid.UUID, Topic) <-chan Msg
	Unsubscribe(uuid.UUID)
}

// Msg is a published payload tagged with its sender and topic.
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message topic
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

const subscriberBuffer = 16

type subscription struct {
	topic Topic
	ch    chan Msg
}

// PubSub fans published messages out to subscribers. Publish never blocks;
// a message for a full subscriber is dropped and counted.
type PubSub struct {
	pid     uuid.UUID
	mux     sync.Mutex
	subs    map[uuid.UUID]subscription
	dropped uint64
}

// NewPublisher returns a PubSub publishing as pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{pid: pid, subs: make(map[uuid.UUID]subscription)}
}

// Subscribe registers pid for messages on topic. A repeated subscription
// replaces the previous one.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) <-chan Msg {
	p.mux.Lock()
	defer p.mux.Unlock()
	if old, ok := p.subs[pid]; ok {
		close(old.ch)
	}
	ch := make(chan Msg, subscriberBuffer)
	p.subs[pid] = subscription{topic: topic, ch: ch}
	return ch
}

// Unsubscribe removes pid and closes its channel.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if sub, ok := p.subs[pid]; ok {
		close(sub.ch)
		delete(p.subs, pid)
	}
}

// UnsubscribeAll closes every subscriber channel.
func (p *PubSub) UnsubscribeAll() {
	p.mux.Lock()
	defer p.mux.Unlock()
	for pid, sub := range p.subs {
		close(sub.ch)
		delete(p.subs, pid)
	}
}

// Publish sends payload to every subscriber of topic.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	m := New(p.pid, topic, payload)
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, sub := range p.subs {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- m:
		default:
			p.dropped++
		}
	}
}

// Dropped returns the number of messages lost to full subscribers.
func (p *PubSub) Dropped() uint64 {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.dropped
}
