package esdb

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

func recv(t *testing.T, sub *Subscription) SubscriptionMessage {
	t.Helper()
	msgs := make(chan SubscriptionMessage, 1)
	errs := make(chan error, 1)
	go func() {
		msg, err := sub.Recv()
		if err != nil {
			errs <- err
			return
		}
		msgs <- msg
	}()
	select {
	case msg := <-msgs:
		return msg
	case err := <-errs:
		t.Fatalf("subscription failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscription message")
	}
	return nil
}

func TestSubscribeToStream(t *testing.T) {
	c, _ := setup(t)
	appendTypes(t, c, "orders-1", "T1", "T2")

	sub, err := c.SubscribeToStream(context.Background(), "orders-1", SubscribeToStreamOptions{})
	require.NoError(t, err)
	defer sub.Close()
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, StateLive, sub.State())

	for _, expected := range []string{"T1", "T2"} {
		msg := recv(t, sub)
		ev, ok := msg.(*ReadEvent)
		require.True(t, ok, "expected an event, got %T", msg)
		assert.Equal(t, expected, ev.Event.Type)
	}
	assert.Equal(t, CaughtUp{}, recv(t, sub))
	assert.Equal(t, StateCaughtUp, sub.State())

	appendTypes(t, c, "orders-1", "T3")
	appendTypes(t, c, "other", "T4")
	ev, ok := recv(t, sub).(*ReadEvent)
	require.True(t, ok)
	assert.Equal(t, "T3", ev.Event.Type)
	assert.EqualValues(t, 2, ev.Event.Revision)

	require.NoError(t, sub.Close())
	assert.Equal(t, StateClosed, sub.State())
	_, err = sub.Recv()
	assert.Equal(t, ErrSubscriptionClosed, err)
	// Close is idempotent.
	assert.NoError(t, sub.Close())
}

func TestSubscribeToStream_FromRevision(t *testing.T) {
	c, _ := setup(t)
	appendTypes(t, c, "orders-2", "T1", "T2", "T3")

	sub, err := c.SubscribeToStream(context.Background(), "orders-2", SubscribeToStreamOptions{From: StreamRevision(0)})
	require.NoError(t, err)
	defer sub.Close()

	// Next only returns events.
	ev, err := sub.Next()
	require.NoError(t, err)
	assert.Equal(t, "T2", ev.Event.Type)
	ev, err = sub.Next()
	require.NoError(t, err)
	assert.Equal(t, "T3", ev.Event.Type)

	appendTypes(t, c, "orders-2", "T4")
	ev, err = sub.Next()
	require.NoError(t, err)
	assert.Equal(t, "T4", ev.Event.Type)
}

func TestSubscribeToStream_FromEnd(t *testing.T) {
	c, _ := setup(t)
	appendTypes(t, c, "orders-3", "T1")

	sub, err := c.SubscribeToStream(context.Background(), "orders-3", SubscribeToStreamOptions{From: End})
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, CaughtUp{}, recv(t, sub))

	appendTypes(t, c, "orders-3", "T2")
	ev, ok := recv(t, sub).(*ReadEvent)
	require.True(t, ok)
	assert.Equal(t, "T2", ev.Event.Type)
}

func TestSubscribeToAll_Filtered(t *testing.T) {
	c, _ := setup(t)
	appendTypes(t, c, "orders-1", "$metadata", "$metadata", "T1", "$metadata", "T2")

	window := uint32(1)
	sub, err := c.SubscribeToAll(context.Background(), SubscribeToAllOptions{
		Filter:          ExcludeSystemEventsFilter{},
		MaxSearchWindow: &window,
	})
	require.NoError(t, err)
	defer sub.Close()

	// Checkpoints arrive after every scanned event but are never surfaced.
	for _, expected := range []string{"T1", "T2"} {
		ev, ok := recv(t, sub).(*ReadEvent)
		require.True(t, ok)
		assert.Equal(t, expected, ev.Event.Type)
	}
	assert.Equal(t, CaughtUp{}, recv(t, sub))
	require.NotNil(t, sub.lastCheckpoint)
	assert.EqualValues(t, 4, sub.lastCheckpoint.Commit)
}

func TestSubscribe_Cancelled(t *testing.T) {
	c, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := c.SubscribeToStream(ctx, "orders-4", SubscribeToStreamOptions{})
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, CaughtUp{}, recv(t, sub))

	cancel()
	_, err = sub.Recv()
	assert.Error(t, err)
}

func TestSubscriptionFsm(t *testing.T) {
	state := subscriptionFsm.NewInstance()
	assert.Equal(t, StateAwaitingConfirmation, state.Current())

	_, err := state.Evaluate(inputEvent)
	assert.Error(t, err)

	for _, step := range []struct {
		input subscriptionInput
		state SubscriptionState
	}{
		{inputConfirmed, StateLive},
		{inputEvent, StateLive},
		{inputCaughtUp, StateCaughtUp},
		{inputFellBehind, StateFellBehind},
		{inputEvent, StateFellBehind},
		{inputCaughtUp, StateCaughtUp},
		{inputClose, StateClosed},
	} {
		current, err := state.Evaluate(step.input)
		require.NoError(t, err)
		assert.Equal(t, step.state, current)
	}
}

// fakeReadStream replays scripted read responses, then ends the stream.
type fakeReadStream struct {
	grpc.ClientStream
	resps []*wire.ReadResp
}

func (f *fakeReadStream) Recv() (*wire.ReadResp, error) {
	if len(f.resps) == 0 {
		return nil, io.EOF
	}
	resp := f.resps[0]
	f.resps = f.resps[1:]
	return resp, nil
}

type fakeStreamsClient struct {
	wire.StreamsClient
	stream *fakeReadStream
}

func (f *fakeStreamsClient) Read(ctx context.Context, in *wire.ReadReq,
	_ ...grpc.CallOption) (grpc.ServerStreamingClient[wire.ReadResp], error) {
	return f.stream, nil
}

func scriptedSubscription(t *testing.T, resps ...*wire.ReadResp) (*Subscription, *fakeReadStream) {
	t.Helper()
	stream := &fakeReadStream{resps: append([]*wire.ReadResp{
		{Confirmation: &wire.SubscriptionConfirmation{SubscriptionID: "sub-1"}},
	}, resps...)}
	c := NewClient(nil, Config{})
	c.streams = &fakeStreamsClient{stream: stream}
	sub, err := c.SubscribeToStream(context.Background(), "orders", SubscribeToStreamOptions{})
	require.NoError(t, err)
	return sub, stream
}

func readEventResp(eventType string) *wire.ReadResp {
	recorded := wireRecorded(uuid.NewV4(), "orders")
	recorded.Metadata[MetadataType] = eventType
	return &wire.ReadResp{Event: &wire.ReadEvent{Event: recorded, NoPosition: &wire.Empty{}}}
}

func TestSubscription_RecvInArrivalOrder(t *testing.T) {
	sub, stream := scriptedSubscription(t,
		readEventResp("T1"),
		&wire.ReadResp{FellBehind: &wire.Empty{}},
		&wire.ReadResp{Checkpoint: &wire.Position{CommitPosition: 7, PreparePosition: 7}},
		readEventResp("T2"),
		&wire.ReadResp{CaughtUp: &wire.Empty{}},
		&wire.ReadResp{StreamNotFound: &wire.StreamNotFound{StreamIdentifier: wire.NewStreamIdentifier("orders")}},
		readEventResp("T3"),
	)
	defer sub.Close()
	assert.Equal(t, "sub-1", sub.ID())

	msg, err := sub.Recv()
	require.NoError(t, err)
	assert.Equal(t, "T1", msg.(*ReadEvent).Event.Type)
	assert.Equal(t, StateLive, sub.State())

	msg, err = sub.Recv()
	require.NoError(t, err)
	assert.Equal(t, FellBehind{}, msg)
	assert.Equal(t, StateFellBehind, sub.State())

	msg, err = sub.Recv()
	require.NoError(t, err)
	assert.Equal(t, "T2", msg.(*ReadEvent).Event.Type)
	require.NotNil(t, sub.lastCheckpoint)
	assert.Equal(t, AllPosition{Commit: 7, Prepare: 7}, *sub.lastCheckpoint)

	msg, err = sub.Recv()
	require.NoError(t, err)
	assert.Equal(t, CaughtUp{}, msg)
	assert.Equal(t, StateCaughtUp, sub.State())

	_, err = sub.Recv()
	var notFound *StreamNotFoundError
	require.True(t, errors.As(err, &notFound), "unexpected error: %v", err)
	assert.Equal(t, "orders", notFound.StreamName)
	assert.True(t, errors.Is(err, ErrStreamNotFound))

	_, again := sub.Recv()
	assert.Equal(t, err, again)
	assert.Len(t, stream.resps, 1)
}

func TestSubscription_NextSkipsSentinels(t *testing.T) {
	sub, _ := scriptedSubscription(t,
		&wire.ReadResp{FellBehind: &wire.Empty{}},
		readEventResp("T1"),
		&wire.ReadResp{CaughtUp: &wire.Empty{}},
		readEventResp("T2"),
	)
	defer sub.Close()

	for _, expected := range []string{"T1", "T2"} {
		ev, err := sub.Next()
		require.NoError(t, err)
		assert.Equal(t, expected, ev.Event.Type)
	}
	_, err := sub.Next()
	assert.Equal(t, Done, err)
	_, err = sub.Next()
	assert.Equal(t, Done, err)
}

func TestSubscription_ProtocolViolations(t *testing.T) {
	tests := []struct {
		name string
		resp *wire.ReadResp
	}{
		{"second confirmation", &wire.ReadResp{Confirmation: &wire.SubscriptionConfirmation{SubscriptionID: "sub-2"}}},
		{"stream bounds", &wire.ReadResp{FirstStreamPosition: wire.Uint64(0)}},
		{"no content", &wire.ReadResp{}},
		{"event without record", &wire.ReadResp{Event: &wire.ReadEvent{NoPosition: &wire.Empty{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, _ := scriptedSubscription(t, tt.resp, readEventResp("T1"))
			defer sub.Close()
			_, err := sub.Recv()
			assert.True(t, errors.Is(err, ErrProtocolViolation), "unexpected error: %v", err)
			_, again := sub.Recv()
			assert.Equal(t, err, again)
		})
	}
}

func TestSubscription_RecvAfterClose(t *testing.T) {
	sub, stream := scriptedSubscription(t, readEventResp("T1"))
	require.NoError(t, sub.Close())
	_, err := sub.Recv()
	assert.Equal(t, ErrSubscriptionClosed, err)
	assert.Equal(t, StateClosed, sub.State())
	assert.Len(t, stream.resps, 1)
}

func TestSubscription_ActiveGauge(t *testing.T) {
	active := subscriptionsActive.WithLabelValues(sourceSubscribe)
	before := testutil.ToFloat64(active)

	sub, _ := scriptedSubscription(t)
	assert.Equal(t, before+1, testutil.ToFloat64(active))

	_, err := sub.Recv()
	assert.Equal(t, Done, err)
	assert.Equal(t, before, testutil.ToFloat64(active))

	require.NoError(t, sub.Close())
	assert.Equal(t, before, testutil.ToFloat64(active))
}
