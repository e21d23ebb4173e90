package mem

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

// fakeReadServer collects what a read sends. When gate is set, the first CaughtUp blocks until gate is closed.
type fakeReadServer struct {
	grpc.ServerStream
	ctx     context.Context
	sent    chan *wire.ReadResp
	gate    chan struct{}
	blocked bool
}

func (f *fakeReadServer) Context() context.Context {
	return f.ctx
}

func (f *fakeReadServer) Send(resp *wire.ReadResp) error {
	f.sent <- resp
	if resp.CaughtUp != nil && f.gate != nil && !f.blocked {
		f.blocked = true
		<-f.gate
	}
	return nil
}

func (f *fakeReadServer) next(t *testing.T) *wire.ReadResp {
	t.Helper()
	select {
	case resp := <-f.sent:
		return resp
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a read response")
	}
	return nil
}

func subscribeReq(stream string, revision *uint64) *wire.ReadReq {
	opts := &wire.ReadStreamOptions{StreamIdentifier: wire.NewStreamIdentifier(stream)}
	if revision != nil {
		opts.Revision = revision
	} else {
		opts.Start = &wire.Empty{}
	}
	return &wire.ReadReq{Options: &wire.ReadReqOptions{
		Stream:       opts,
		Subscription: &wire.Empty{},
		NoFilter:     &wire.Empty{},
	}}
}

func serveRead(t *testing.T, store *Store, req *wire.ReadReq, stream *fakeReadServer) func() {
	ctx, cancel := context.WithCancel(context.Background())
	stream.ctx = ctx
	done := make(chan error, 1)
	go func() {
		done <- streamsService{NewServer(store, nil)}.Read(req, stream)
	}()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("read did not stop")
		}
	}
}

func TestStreams_SubscribeFellBehind(t *testing.T) {
	store := NewStore()
	_, err := store.Append("s", Expectation{}, newRecords("T0"))
	require.NoError(t, err)

	stream := &fakeReadServer{sent: make(chan *wire.ReadResp, 2*liveBuffer), gate: make(chan struct{})}
	stop := serveRead(t, store, subscribeReq("s", nil), stream)
	defer stop()

	assert.NotNil(t, stream.next(t).Confirmation)
	assert.Equal(t, "T0", stream.next(t).Event.Event.Metadata[metadataType])
	assert.NotNil(t, stream.next(t).CaughtUp)

	// The reader is held in Send, so the live buffer overflows.
	burst := liveBuffer + 100
	var types []string
	for i := 1; i <= burst; i++ {
		types = append(types, fmt.Sprintf("T%d", i))
	}
	_, err = store.Append("s", Expectation{}, newRecords(types...))
	require.NoError(t, err)
	close(stream.gate)

	assert.NotNil(t, stream.next(t).FellBehind)
	for i, expected := range types {
		resp := stream.next(t)
		require.NotNil(t, resp.Event, "expected event %d, got %+v", i, resp)
		assert.Equal(t, expected, resp.Event.Event.Metadata[metadataType])
		assert.EqualValues(t, i+1, resp.Event.Event.StreamRevision)
	}
	assert.NotNil(t, stream.next(t).CaughtUp)
}

func TestStreams_SubscribeFromLastRevision(t *testing.T) {
	store := NewStore()
	_, err := store.Append("s", Expectation{}, newRecords("T0", "T1"))
	require.NoError(t, err)

	last := uint64(math.MaxUint64)
	stream := &fakeReadServer{sent: make(chan *wire.ReadResp, 16)}
	stop := serveRead(t, store, subscribeReq("s", &last), stream)
	defer stop()

	assert.NotNil(t, stream.next(t).Confirmation)
	assert.NotNil(t, stream.next(t).CaughtUp)

	_, err = store.Append("s", Expectation{}, newRecords("T2"))
	require.NoError(t, err)
	select {
	case resp := <-stream.sent:
		t.Fatalf("unexpected response %+v", resp)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIndex(t *testing.T) {
	assert.Equal(t, 3, index(3))
	assert.Equal(t, math.MaxInt, index(math.MaxUint64))
	assert.Equal(t, 4, after(3))
	assert.Equal(t, math.MaxInt, after(math.MaxUint64))
	assert.Equal(t, math.MaxInt, after(math.MaxInt-1))
}
