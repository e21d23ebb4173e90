package esdb

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"google.golang.org/grpc"

	"github.com/fission/esdb-client/pkg/esdb/wire"
	"github.com/fission/esdb-client/pkg/util/fsm"
)

type SubscriptionState string

const (
	StateAwaitingConfirmation SubscriptionState = "awaiting-confirmation"
	StateLive                 SubscriptionState = "live"
	StateCaughtUp             SubscriptionState = "caught-up"
	StateFellBehind           SubscriptionState = "fell-behind"
	StateClosed               SubscriptionState = "closed"
)

type subscriptionInput string

const (
	inputConfirmed  subscriptionInput = "confirmed"
	inputEvent      subscriptionInput = "event"
	inputCaughtUp   subscriptionInput = "caught-up"
	inputFellBehind subscriptionInput = "fell-behind"
	inputClose      subscriptionInput = "close"
)

type subscriptionTransition = fsm.Transition[SubscriptionState, subscriptionInput]

var subscriptionFsm = fsm.New(StateAwaitingConfirmation, []subscriptionTransition{
	{Event: inputConfirmed, Src: StateAwaitingConfirmation, Dst: StateLive},
	{Event: inputClose, Src: StateAwaitingConfirmation, Dst: StateClosed},

	{Event: inputEvent, Src: StateLive, Dst: StateLive},
	{Event: inputCaughtUp, Src: StateLive, Dst: StateCaughtUp},
	{Event: inputFellBehind, Src: StateLive, Dst: StateFellBehind},
	{Event: inputClose, Src: StateLive, Dst: StateClosed},

	{Event: inputEvent, Src: StateCaughtUp, Dst: StateCaughtUp},
	{Event: inputCaughtUp, Src: StateCaughtUp, Dst: StateCaughtUp},
	{Event: inputFellBehind, Src: StateCaughtUp, Dst: StateFellBehind},
	{Event: inputClose, Src: StateCaughtUp, Dst: StateClosed},

	{Event: inputEvent, Src: StateFellBehind, Dst: StateFellBehind},
	{Event: inputCaughtUp, Src: StateFellBehind, Dst: StateCaughtUp},
	{Event: inputFellBehind, Src: StateFellBehind, Dst: StateFellBehind},
	{Event: inputClose, Src: StateFellBehind, Dst: StateClosed},
})

type SubscribeToStreamOptions struct {
	// From is the revision after which events are delivered, or a marker. Nil means Start.
	From         RevisionSelector
	ResolveLinks bool
}

type SubscribeToAllOptions struct {
	// From is the position after which events are delivered, or a marker. Nil means Start.
	From         PositionSelector
	ResolveLinks bool
	Filter       Filter
	// MaxSearchWindow bounds the events the server scans between checkpoints of a filtered subscription.
	MaxSearchWindow *uint32
	// CheckpointInterval multiplies the search window to space checkpoints. Zero means 1.
	CheckpointInterval uint32
}

// SubscribeToStream opens a subscription to a stream and waits for the server to confirm it. The subscription
// lives until it is closed or ctx is done.
func (c *Client) SubscribeToStream(ctx context.Context, streamName string,
	opts SubscribeToStreamOptions) (*Subscription, error) {
	req := newReadStreamReq(streamName, opts.From, Forwards, opts.ResolveLinks, nil)
	return c.subscribe(ctx, streamName, req)
}

// SubscribeToAll opens a subscription to the global log and waits for the server to confirm it.
func (c *Client) SubscribeToAll(ctx context.Context, opts SubscribeToAllOptions) (*Subscription, error) {
	filter, noFilter := compileFilter(opts.Filter, opts.MaxSearchWindow, opts.CheckpointInterval)
	req := newReadAllReq(opts.From, Forwards, opts.ResolveLinks, nil, filter, noFilter)
	return c.subscribe(ctx, AllStreamName, req)
}

func (c *Client) subscribe(ctx context.Context, streamName string, req *wire.ReadReq) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.streams.Read(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	sub := &Subscription{
		stream: stream,
		cancel: cancel,
		state:  subscriptionFsm.NewInstance(),
		log:    c.log.WithField("stream.name", streamName),
	}

	if err := sub.awaitConfirmation(); err != nil {
		cancel()
		return nil, err
	}
	subscriptionsActive.WithLabelValues(sourceSubscribe).Inc()
	sub.log = sub.log.WithField("subscription.id", sub.id)
	sub.log.Info("Subscription confirmed.")
	return sub, nil
}

// Subscription is a transient subscription. Recv and Next must be called from a single goroutine; Close may be
// called from any goroutine.
type Subscription struct {
	id             string
	stream         grpc.ServerStreamingClient[wire.ReadResp]
	cancel         context.CancelFunc
	state          *fsm.Instance[SubscriptionState, subscriptionInput]
	closed         atomic.Bool
	closeOnce      sync.Once
	releaseOnce    sync.Once
	err            error
	lastCheckpoint *AllPosition
	log            *logrus.Entry
}

func (s *Subscription) awaitConfirmation() error {
	resp, err := s.stream.Recv()
	if err == io.EOF {
		return protocolError("subscribe", "stream ended before confirmation")
	}
	if err != nil {
		return err
	}
	content, err := decodeReadResp("subscribe", resp)
	if err != nil {
		return err
	}
	switch v := content.(type) {
	case SubscriptionConfirmation:
		s.id = v.ID
		_, err := s.state.Evaluate(inputConfirmed)
		return err
	case *StreamNotFoundError:
		return v
	default:
		return protocolError("subscribe", "expected confirmation, got %T", v)
	}
}

// ID is the server-assigned identifier of the subscription.
func (s *Subscription) ID() string {
	return s.id
}

func (s *Subscription) State() SubscriptionState {
	return s.state.Current()
}

// Recv returns the next *ReadEvent, CaughtUp or FellBehind in the order the server sent them. Checkpoints are
// consumed without being returned. After Close, Recv returns ErrSubscriptionClosed.
func (s *Subscription) Recv() (SubscriptionMessage, error) {
	for {
		if s.closed.Load() {
			return nil, ErrSubscriptionClosed
		}
		if s.err != nil {
			return nil, s.err
		}
		resp, err := s.stream.Recv()
		if err != nil {
			if s.closed.Load() {
				return nil, ErrSubscriptionClosed
			}
			if err == io.EOF {
				err = Done
			}
			return nil, s.fail(err)
		}
		if s.closed.Load() {
			return nil, ErrSubscriptionClosed
		}
		content, err := decodeReadResp("subscription", resp)
		if err != nil {
			return nil, s.fail(err)
		}

		switch v := content.(type) {
		case *ReadEvent:
			s.transition(inputEvent)
			eventsReceived.WithLabelValues(sourceSubscribe).Inc()
			return v, nil
		case CaughtUp:
			s.transition(inputCaughtUp)
			s.log.Debug("Subscription caught up.")
			return v, nil
		case FellBehind:
			s.transition(inputFellBehind)
			s.log.Debug("Subscription fell behind.")
			return v, nil
		case Checkpoint:
			pos := v.Position
			s.lastCheckpoint = &pos
			s.log.WithField("checkpoint", pos).Debug("Checkpoint reached.")
		case *StreamNotFoundError:
			return nil, s.fail(v)
		default:
			return nil, s.fail(protocolError("subscription", "unexpected %T", v))
		}
	}
}

// Next is the narrowed view of Recv that returns events only.
func (s *Subscription) Next() (*ReadEvent, error) {
	for {
		msg, err := s.Recv()
		if err != nil {
			return nil, err
		}
		if ev, ok := msg.(*ReadEvent); ok {
			return ev, nil
		}
	}
}

// Close ends the subscription and releases its stream. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.transition(inputClose)
		s.release()
		s.log.Info("Subscription closed.")
	})
	return nil
}

func (s *Subscription) transition(input subscriptionInput) {
	if _, err := s.state.Evaluate(input); err != nil && !s.closed.Load() {
		s.log.WithError(err).Warn("Unexpected subscription state transition.")
	}
}

func (s *Subscription) fail(err error) error {
	s.err = err
	s.log.WithError(err).Info("Subscription ended.")
	s.cancel()
	s.release()
	return err
}

// release gives back the active subscriptions gauge on the first of fail or Close.
func (s *Subscription) release() {
	s.releaseOnce.Do(func() {
		subscriptionsActive.WithLabelValues(sourceSubscribe).Dec()
	})
}
