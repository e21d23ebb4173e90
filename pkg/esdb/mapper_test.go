package esdb

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

func TestNewAppendHeader(t *testing.T) {
	header := newAppendHeader("s", nil).Options
	assert.NotNil(t, header.Any)
	assert.Nil(t, header.NoStream)

	header = newAppendHeader("s", StreamRevision(4)).Options
	require.NotNil(t, header.Revision)
	assert.EqualValues(t, 4, *header.Revision)
	assert.Nil(t, header.Any)

	assert.NotNil(t, newAppendHeader("s", NoStream{}).Options.NoStream)
	assert.NotNil(t, newAppendHeader("s", StreamExists{}).Options.StreamExists)
	assert.Equal(t, "s", newAppendHeader("s", Any{}).Options.StreamIdentifier.Name())
}

func TestNewProposedMessage(t *testing.T) {
	msg := newProposedMessage(EventData{Type: "T1", Data: []byte{1}}).ProposedMessage
	id, err := msg.ID.Parse()
	require.NoError(t, err)
	assert.False(t, uuid.Equal(uuid.Nil, id))
	assert.Equal(t, "T1", msg.Metadata[MetadataType])
	assert.Equal(t, string(ContentTypeBinary), msg.Metadata[MetadataContentType])
}

func TestNewReadReq(t *testing.T) {
	count := uint64(10)
	req := newReadStreamReq("s", End, Backwards, true, &count).Options
	assert.NotNil(t, req.Stream.End)
	assert.Nil(t, req.Stream.Start)
	assert.Equal(t, wire.Backwards, req.ReadDirection)
	assert.True(t, req.ResolveLinks)
	assert.EqualValues(t, 10, *req.Count)
	assert.Nil(t, req.Subscription)
	assert.NotNil(t, req.NoFilter)

	req = newReadAllReq(AllPosition{Commit: 5, Prepare: 4}, Forwards, false, nil, nil, &wire.Empty{}).Options
	assert.EqualValues(t, 5, req.All.Position.CommitPosition)
	assert.EqualValues(t, 4, req.All.Position.PreparePosition)
	assert.NotNil(t, req.Subscription)
	assert.Nil(t, req.Count)
}

func TestDecodeReadResp(t *testing.T) {
	content, err := decodeReadResp("test", &wire.ReadResp{Checkpoint: &wire.Position{CommitPosition: 3, PreparePosition: 2}})
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{Position: AllPosition{Commit: 3, Prepare: 2}}, content)

	content, err = decodeReadResp("test", &wire.ReadResp{CaughtUp: &wire.Empty{}})
	require.NoError(t, err)
	assert.Equal(t, CaughtUp{}, content)

	content, err = decodeReadResp("test", &wire.ReadResp{FellBehind: &wire.Empty{}})
	require.NoError(t, err)
	assert.Equal(t, FellBehind{}, content)

	content, err = decodeReadResp("test", &wire.ReadResp{
		StreamNotFound: &wire.StreamNotFound{StreamIdentifier: wire.NewStreamIdentifier("gone")},
	})
	require.NoError(t, err)
	assert.Equal(t, &StreamNotFoundError{StreamName: "gone"}, content)

	content, err = decodeReadResp("test", &wire.ReadResp{LastStreamPosition: wire.Uint64(4)})
	require.NoError(t, err)
	assert.Equal(t, streamMarker{}, content)

	_, err = decodeReadResp("test", &wire.ReadResp{})
	assert.True(t, errors.Is(err, ErrProtocolViolation))

	_, err = decodeReadResp("test", &wire.ReadResp{Event: &wire.ReadEvent{NoPosition: &wire.Empty{}}})
	assert.True(t, errors.Is(err, ErrProtocolViolation))
}

func TestConvertRecordedEvent(t *testing.T) {
	id := uuid.NewV4()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ev, err := convertRecordedEvent("test", &wire.RecordedEvent{
		ID:               wire.NewStructuredUUID(id),
		StreamIdentifier: wire.NewStreamIdentifier("orders-1"),
		StreamRevision:   7,
		CommitPosition:   100,
		PreparePosition:  99,
		Metadata: map[string]string{
			MetadataType:        "OrderPlaced",
			MetadataContentType: "text/plain",
			MetadataCreated:     "17092944000000000",
		},
		Data: []byte("not json"),
	})
	require.NoError(t, err)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, ContentTypeBinary, ev.ContentType)
	assert.EqualValues(t, 7, ev.Revision)
	assert.Equal(t, AllPosition{Commit: 100, Prepare: 99}, ev.Position)
	assert.Equal(t, created, ev.Created)
	assert.Equal(t, []byte("not json"), ev.Data)

	_, err = convertRecordedEvent("test", &wire.RecordedEvent{
		ID:       wire.NewUUID(id),
		Metadata: map[string]string{MetadataCreated: "yesterday"},
	})
	assert.True(t, errors.Is(err, ErrProtocolViolation))

	_, err = convertRecordedEvent("test", &wire.RecordedEvent{})
	assert.True(t, errors.Is(err, ErrProtocolViolation))
}

func TestDecodePersistentReadResp(t *testing.T) {
	id := uuid.NewV4()
	content, err := decodePersistentReadResp(&wire.PersistentReadResp{Event: &wire.ReadEvent{
		Event:      &wire.RecordedEvent{ID: wire.NewUUID(id)},
		RetryCount: wire.Int32(-1),
	}})
	require.NoError(t, err)
	ev := content.(*PersistentSubscriptionEvent)
	assert.EqualValues(t, 0, ev.RetryCount)
	original, err := ev.OriginalID()
	require.NoError(t, err)
	assert.Equal(t, id, original)

	_, err = decodePersistentReadResp(&wire.PersistentReadResp{})
	assert.True(t, errors.Is(err, ErrProtocolViolation))
}

func TestTicks(t *testing.T) {
	now := time.Now().UTC().Truncate(100 * time.Nanosecond)
	assert.Equal(t, now, TicksToTime(TimeToTicks(now)))
}
