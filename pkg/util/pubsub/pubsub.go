// Package pubsub is a simple, matcher-based, thread-safe PubSub implementation.
//
// Publishing never blocks: a message that does not fit in a subscriber's buffer is dropped for that subscriber and
// counted, so slow subscribers can detect that they fell behind and recover from the source of truth.
package pubsub

import (
	"io"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	defaultSubscriptionBuffer = 10
)

type Msg interface {
	CreatedAt() time.Time
}

// Matcher decides whether a subscription is interested in a message.
type Matcher func(msg Msg) bool

type Publisher interface {
	io.Closer
	Subscribe(opts ...SubscriptionOptions) *Subscription
	Unsubscribe(sub *Subscription) error
	Publish(msg Msg) error
}

type SubscriptionOptions struct {
	Buf     int
	Matcher Matcher
}

type Subscription struct {
	SubscriptionOptions
	Ch      chan Msg
	dropped atomic.Uint64
}

// Dropped returns the number of messages that were not delivered to this subscription because its buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

type GenericMsg struct {
	createdAt time.Time
	payload   interface{}
}

func NewGenericMsg(createdAt time.Time, payload interface{}) *GenericMsg {
	return &GenericMsg{
		createdAt: createdAt,
		payload:   payload,
	}
}

func (gm *GenericMsg) CreatedAt() time.Time {
	return gm.createdAt
}

func (gm *GenericMsg) Payload() interface{} {
	return gm.payload
}

func NewPublisher() *DefaultPublisher {
	return &DefaultPublisher{}
}

type DefaultPublisher struct {
	subs []*Subscription
	lock sync.Mutex
}

func (pu *DefaultPublisher) Unsubscribe(sub *Subscription) error {
	pu.lock.Lock()
	defer pu.lock.Unlock()
	pu.unsubscribe(sub)
	return nil
}

func (pu *DefaultPublisher) unsubscribe(sub *Subscription) {
	updatedSubs := make([]*Subscription, 0, len(pu.subs))
	var found bool
	for _, s := range pu.subs {
		if s == sub {
			found = true
			continue
		}
		updatedSubs = append(updatedSubs, s)
	}
	pu.subs = updatedSubs
	if found {
		close(sub.Ch)
	}
}

func (pu *DefaultPublisher) Subscribe(opts ...SubscriptionOptions) *Subscription {
	pu.lock.Lock()
	defer pu.lock.Unlock()
	var subOpts SubscriptionOptions
	if len(opts) > 0 {
		subOpts = opts[0]
	}

	if subOpts.Buf <= 0 {
		subOpts.Buf = defaultSubscriptionBuffer
	}

	sub := &Subscription{
		Ch:                  make(chan Msg, subOpts.Buf),
		SubscriptionOptions: subOpts,
	}

	pu.subs = append(pu.subs, sub)
	return sub
}

func (pu *DefaultPublisher) Publish(msg Msg) error {
	pu.lock.Lock()
	defer pu.lock.Unlock()
	for _, sub := range pu.subs {
		if sub.Matcher != nil && !sub.Matcher(msg) {
			continue
		}
		select {
		case sub.Ch <- msg:
			// OK
		default:
			sub.dropped.Inc()
		}
	}
	return nil
}

func (pu *DefaultPublisher) Close() error {
	pu.lock.Lock()
	defer pu.lock.Unlock()
	for _, sub := range append([]*Subscription(nil), pu.subs...) {
		pu.unsubscribe(sub)
	}
	return nil
}
