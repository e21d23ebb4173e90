package esdb

import (
	"context"
	"sync"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"google.golang.org/grpc"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

// NackAction tells the server what to do with a rejected event.
type NackAction int32

const (
	NackUnknown NackAction = iota
	NackPark
	NackRetry
	NackSkip
	NackStop
)

func (a NackAction) String() string {
	switch a {
	case NackPark:
		return "park"
	case NackRetry:
		return "retry"
	case NackSkip:
		return "skip"
	case NackStop:
		return "stop"
	default:
		return "unknown"
	}
}

type SubscribeToPersistentSubscriptionOptions struct {
	// BufferSize is the number of unacknowledged events the server may have in flight. Zero uses the client config.
	BufferSize int32
}

// SubscribeToPersistentSubscriptionToStream joins a group on a stream and waits for the server to confirm it.
func (c *Client) SubscribeToPersistentSubscriptionToStream(ctx context.Context, streamName, group string,
	opts SubscribeToPersistentSubscriptionOptions) (*PersistentSubscription, error) {
	return c.subscribePersistent(ctx, streamName, group, opts)
}

// SubscribeToPersistentSubscriptionToAll joins a group on the global log and waits for the server to confirm it.
func (c *Client) SubscribeToPersistentSubscriptionToAll(ctx context.Context, group string,
	opts SubscribeToPersistentSubscriptionOptions) (*PersistentSubscription, error) {
	return c.subscribePersistent(ctx, AllStreamName, group, opts)
}

func (c *Client) subscribePersistent(ctx context.Context, streamName, group string,
	opts SubscribeToPersistentSubscriptionOptions) (*PersistentSubscription, error) {
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = c.config.PersistentBufferSize
	}
	queueSize := c.config.ControlQueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.persistent.Read(ctx)
	if err != nil {
		cancel()
		return nil, persistentError(err, group, streamName)
	}
	s := &PersistentSubscription{
		group:      group,
		streamName: streamName,
		stream:     stream,
		ctx:        ctx,
		cancel:     cancel,
		outbound:   make(chan *wire.PersistentReadReq, queueSize),
		senderDone: make(chan struct{}),
		log: c.log.WithFields(logrus.Fields{
			"stream.name": streamName,
			"group.name":  group,
		}),
	}

	// The registration is queued before the sender starts, so it is always the first message on the stream.
	s.outbound <- newPersistentReadReq(streamName, group, bufferSize)
	go s.sendLoop(s.log)

	if err := s.awaitConfirmation(); err != nil {
		s.shutdown()
		return nil, err
	}
	subscriptionsActive.WithLabelValues(sourcePersistent).Inc()
	s.log = s.log.WithField("subscription.id", s.id)
	s.log.Info("Persistent subscription confirmed.")
	return s, nil
}

// PersistentSubscription is a session with a persistent subscription group. Events are pulled with Next and
// settled with Ack or Nack. Next must be called from a single goroutine; Ack, Nack and Close may be called from
// any goroutine.
type PersistentSubscription struct {
	id          string
	group       string
	streamName  string
	stream      grpc.BidiStreamingClient[wire.PersistentReadReq, wire.PersistentReadResp]
	ctx         context.Context
	cancel      context.CancelFunc
	outbound    chan *wire.PersistentReadReq
	senderDone  chan struct{}
	err         atomic.Error
	failOnce    sync.Once
	closed      atomic.Bool
	closeOnce   sync.Once
	releaseOnce sync.Once
	log         *logrus.Entry
}

func (s *PersistentSubscription) awaitConfirmation() error {
	resp, err := s.stream.Recv()
	if err != nil {
		return persistentError(err, s.group, s.streamName)
	}
	content, err := decodePersistentReadResp(resp)
	if err != nil {
		return err
	}
	confirmation, ok := content.(SubscriptionConfirmation)
	if !ok {
		return protocolError("persistent subscription", "expected confirmation, got %T", content)
	}
	s.id = confirmation.ID
	return nil
}

// sendLoop owns the sending side of the stream and drains the outbound queue in order. It never reads s.log, which
// is replaced once the subscription is confirmed.
func (s *PersistentSubscription) sendLoop(log *logrus.Entry) {
	defer close(s.senderDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.outbound:
			if err := s.stream.Send(req); err != nil {
				// The cause of a failed send is reported by the receiving side.
				log.WithError(err).Debug("Failed to send control message.")
				return
			}
		}
	}
}

func (s *PersistentSubscription) ID() string {
	return s.id
}

func (s *PersistentSubscription) Group() string {
	return s.group
}

// Next returns the next event delivered to this member of the group.
func (s *PersistentSubscription) Next() (*PersistentSubscriptionEvent, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	resp, err := s.stream.Recv()
	if err != nil {
		if s.closed.Load() {
			return nil, ErrSubscriptionClosed
		}
		return nil, s.fail(persistentError(err, s.group, s.streamName))
	}
	content, err := decodePersistentReadResp(resp)
	if err != nil {
		return nil, s.fail(err)
	}
	switch v := content.(type) {
	case *PersistentSubscriptionEvent:
		eventsReceived.WithLabelValues(sourcePersistent).Inc()
		return v, nil
	default:
		return nil, s.fail(protocolError("persistent subscription", "unexpected %T after confirmation", v))
	}
}

// Ack acknowledges events as processed, in a single message. It blocks only while the outbound queue is full.
func (s *PersistentSubscription) Ack(ctx context.Context, events ...*PersistentSubscriptionEvent) error {
	ids, err := originalIDs(events)
	if err != nil || len(ids) == 0 {
		return err
	}
	if err := s.submit(ctx, newAck(ids)); err != nil {
		return err
	}
	controlMessages.WithLabelValues("ack").Inc()
	s.log.WithField("events", len(ids)).Debug("Ack queued.")
	return nil
}

// Nack rejects events, in a single message, asking the server to apply action to them.
func (s *PersistentSubscription) Nack(ctx context.Context, action NackAction, reason string,
	events ...*PersistentSubscriptionEvent) error {
	ids, err := originalIDs(events)
	if err != nil || len(ids) == 0 {
		return err
	}
	if err := s.submit(ctx, newNack(action, reason, ids)); err != nil {
		return err
	}
	controlMessages.WithLabelValues("nack").Inc()
	s.log.WithFields(logrus.Fields{
		"events": len(ids),
		"action": action,
	}).Debug("Nack queued.")
	return nil
}

func originalIDs(events []*PersistentSubscriptionEvent) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		if e == nil {
			return nil, protocolError("ack", "nil event")
		}
		id, err := e.OriginalID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *PersistentSubscription) submit(ctx context.Context, req *wire.PersistentReadReq) error {
	if err := s.failure(); err != nil {
		return err
	}
	select {
	case <-s.senderDone:
		return s.senderFailure()
	default:
	}
	select {
	case s.outbound <- req:
		return nil
	case <-s.senderDone:
		return s.senderFailure()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PersistentSubscription) failure() error {
	if s.closed.Load() {
		return ErrSubscriptionClosed
	}
	return s.err.Load()
}

func (s *PersistentSubscription) senderFailure() error {
	if err := s.failure(); err != nil {
		return err
	}
	return &PersistentSubscriptionError{
		Kind:       ErrPersistentSubscriptionDropped,
		Group:      s.group,
		StreamName: s.streamName,
	}
}

func (s *PersistentSubscription) fail(err error) error {
	s.failOnce.Do(func() {
		s.err.Store(err)
		s.log.WithError(err).Info("Persistent subscription ended.")
		s.release()
	})
	s.cancel()
	return s.err.Load()
}

// Close ends the session. Acks and nacks still queued are sent on a best-effort basis.
func (s *PersistentSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.shutdown()
		s.release()
		s.log.Info("Persistent subscription closed.")
	})
	return nil
}

// release gives back the active subscriptions gauge on the first of fail or Close.
func (s *PersistentSubscription) release() {
	s.releaseOnce.Do(func() {
		subscriptionsActive.WithLabelValues(sourcePersistent).Dec()
	})
}

func (s *PersistentSubscription) shutdown() {
	s.closed.Store(true)
	s.cancel()
	<-s.senderDone
}
