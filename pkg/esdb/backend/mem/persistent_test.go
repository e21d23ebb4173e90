package mem

import (
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

func newGroup(strategy string, maxRetries int32) *group {
	return &group{
		key:      groupKey{stream: "orders", group: "g"},
		settings: groupSettings{strategy: strategy, maxRetryCount: maxRetries},
		inFlight: map[uuid.UUID]*inFlight{},
		changed:  make(chan struct{}),
	}
}

func ack(ids ...uuid.UUID) *wire.PersistentReadReq {
	req := &wire.PersistentReadReq{Ack: &wire.Ack{}}
	for _, id := range ids {
		req.Ack.IDs = append(req.Ack.IDs, wire.NewUUID(id))
	}
	return req
}

func nack(action wire.NackAction, ids ...uuid.UUID) *wire.PersistentReadReq {
	req := &wire.PersistentReadReq{Nack: &wire.Nack{Action: action}}
	for _, id := range ids {
		req.Nack.IDs = append(req.Nack.IDs, wire.NewUUID(id))
	}
	return req
}

func TestGroup_RoundRobin(t *testing.T) {
	g := newGroup("RoundRobin", 10)
	records := newRecords("T1", "T2", "T3", "T4")
	for i, r := range records {
		r.Revision = uint64(i)
	}
	a, err := g.join(10)
	require.NoError(t, err)
	b, err := g.join(10)
	require.NoError(t, err)

	d, _, err := g.next(a, records)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, records[0], d.record)

	// It is b's turn now.
	d, changed, err := g.next(a, records)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.NotNil(t, changed)

	d, _, err = g.next(b, records)
	require.NoError(t, err)
	assert.Equal(t, records[1], d.record)
	assert.Len(t, g.inFlight, 2)
}

func TestGroup_DispatchToSingle(t *testing.T) {
	g := newGroup("DispatchToSingle", 10)
	records := newRecords("T1", "T2")
	first, _ := g.join(1)
	second, _ := g.join(1)

	d, _, _ := g.next(second, records)
	assert.Nil(t, d)
	d, _, _ = g.next(first, records)
	require.NotNil(t, d)

	// first is at capacity, so second takes over.
	d, _, _ = g.next(second, records)
	require.NotNil(t, d)
	assert.Equal(t, records[1], d.record)
}

func TestGroup_AckAndNack(t *testing.T) {
	g := newGroup("RoundRobin", 1)
	records := newRecords("T1", "T2", "T3")
	for i, r := range records {
		r.Revision = uint64(i)
	}
	m, _ := g.join(10)

	var delivered []*delivery
	for range records {
		d, _, err := g.next(m, records)
		require.NoError(t, err)
		delivered = append(delivered, d)
	}
	d, _, _ := g.next(m, records)
	assert.Nil(t, d)

	require.NoError(t, g.settle(m, ack(delivered[0].record.ID)))
	require.NoError(t, g.settle(m, nack(wire.NackPark, delivered[1].record.ID)))
	require.NoError(t, g.settle(m, nack(wire.NackRetry, delivered[2].record.ID)))
	assert.Empty(t, g.inFlight)
	assert.Len(t, g.parked, 1)
	assert.EqualValues(t, 0, m.inFlight)

	// The retried event comes back with its retry count.
	d, _, _ = g.next(m, records)
	require.NotNil(t, d)
	assert.Equal(t, records[2], d.record)
	assert.EqualValues(t, 1, d.retryCount)

	// Retrying past the maximum parks it.
	require.NoError(t, g.settle(m, nack(wire.NackRetry, d.record.ID)))
	assert.Len(t, g.parked, 2)
	assert.Empty(t, g.retry)

	info := g.info("2")
	assert.EqualValues(t, 2, info.ParkedMessageCount)
	assert.EqualValues(t, 0, info.TotalInFlightMessages)
}

func TestGroup_LeaveRequeues(t *testing.T) {
	g := newGroup("RoundRobin", 10)
	records := newRecords("T1")
	a, _ := g.join(10)
	d, _, _ := g.next(a, records)
	require.NotNil(t, d)

	g.leave(a)
	assert.Empty(t, g.inFlight)
	assert.Len(t, g.retry, 1)

	b, _ := g.join(10)
	d, _, _ = g.next(b, records)
	require.NotNil(t, d)
	assert.Equal(t, records[0], d.record)
}

func TestGroup_StopAndReset(t *testing.T) {
	g := newGroup("RoundRobin", 10)
	records := newRecords("T1")
	m, _ := g.join(10)
	d, _, _ := g.next(m, records)
	require.NotNil(t, d)

	require.NoError(t, g.settle(m, nack(wire.NackStop, d.record.ID)))
	_, _, err := g.next(m, records)
	assert.Equal(t, errMemberStopped, err)

	other, _ := g.join(10)
	g.reset(0)
	_, _, err = g.next(other, records)
	assert.Equal(t, codes.Canceled, status.Code(err))
}

func TestGroup_MaxSubscribers(t *testing.T) {
	g := newGroup("RoundRobin", 10)
	g.settings.maxSubscribers = 1
	_, err := g.join(10)
	require.NoError(t, err)
	_, err = g.join(10)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}
