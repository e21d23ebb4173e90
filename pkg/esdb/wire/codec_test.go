package wire

import (
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestCodec_ReadRespEvent(t *testing.T) {
	id := uuid.NewV4()
	in := &ReadResp{
		Event: &ReadEvent{
			Event: &RecordedEvent{
				ID:               NewUUID(id),
				StreamIdentifier: NewStreamIdentifier("orders-1"),
				StreamRevision:   3,
				PreparePosition:  42,
				CommitPosition:   42,
				Metadata:         map[string]string{"type": "created", "content-type": "application/json"},
				Data:             []byte(`{"a":1}`),
			},
			CommitPosition: Uint64(42),
		},
	}

	data, err := Codec{}.Marshal(in)
	require.NoError(t, err)

	out := &ReadResp{}
	require.NoError(t, Codec{}.Unmarshal(data, out))
	assert.Equal(t, in, out)
}

func TestCodec_OneofZeroValuesArePresent(t *testing.T) {
	in := &ReadReqOptions{
		Stream: &ReadStreamOptions{
			StreamIdentifier: NewStreamIdentifier("s"),
			Revision:         Uint64(0),
		},
		Count:    Uint64(0),
		NoFilter: &Empty{},
	}

	out := &ReadReqOptions{}
	require.NoError(t, Unmarshal(Marshal(in), out))
	require.NotNil(t, out.Count)
	assert.EqualValues(t, 0, *out.Count)
	require.NotNil(t, out.Stream.Revision)
	assert.Nil(t, out.Stream.Start)
	assert.NotNil(t, out.NoFilter)
	assert.Nil(t, out.Subscription)
}

func TestCodec_UnknownFieldsAreSkipped(t *testing.T) {
	b := Marshal(&SubscriptionConfirmation{SubscriptionID: "sub-1"})
	b = protowire.AppendTag(b, 99, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 7)
	b = protowire.AppendTag(b, 100, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("ignored"))

	out := &SubscriptionConfirmation{}
	require.NoError(t, Unmarshal(b, out))
	assert.Equal(t, "sub-1", out.SubscriptionID)
}

func TestCodec_Truncated(t *testing.T) {
	b := Marshal(&SubscriptionConfirmation{SubscriptionID: "sub-1"})
	err := Codec{}.Unmarshal(b[:len(b)-2], &SubscriptionConfirmation{})
	assert.Error(t, err)
}

func TestCodec_RejectsForeignTypes(t *testing.T) {
	_, err := Codec{}.Marshal("not a message")
	assert.Error(t, err)
	assert.Equal(t, "proto", Codec{}.Name())
}

func TestUUID_Representations(t *testing.T) {
	id := uuid.NewV4()

	parsed, err := NewStructuredUUID(id).Parse()
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = NewUUID(id).Parse()
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = (*UUID)(nil).Parse()
	assert.Error(t, err)
	_, err = (&UUID{}).Parse()
	assert.Error(t, err)
}

func TestNackAndRetryCount(t *testing.T) {
	in := &Nack{
		IDs:    []*UUID{NewUUID(uuid.NewV4()), NewUUID(uuid.NewV4())},
		Action: NackPark,
		Reason: "poison",
	}
	out := &Nack{}
	require.NoError(t, Unmarshal(Marshal(in), out))
	assert.Equal(t, in, out)

	ev := &ReadEvent{RetryCount: Int32(-1)}
	evOut := &ReadEvent{}
	require.NoError(t, Unmarshal(Marshal(ev), evOut))
	assert.EqualValues(t, -1, *evOut.RetryCount)
}

func TestWrongExpectedVersion_PreRevisionFields(t *testing.T) {
	out := &WrongExpectedVersion{}
	require.NoError(t, Unmarshal(Marshal(&WrongExpectedVersion{
		CurrentRevision2060: Uint64(12),
		ExpectedRevision:    Uint64(3),
	}), out))
	require.NotNil(t, out.Current())
	assert.EqualValues(t, 12, *out.Current())
	assert.Nil(t, out.CurrentRevision)

	out = &WrongExpectedVersion{}
	require.NoError(t, Unmarshal(Marshal(&WrongExpectedVersion{
		CurrentRevision2060: Uint64(12),
		CurrentNoStream:     &Empty{},
	}), out))
	assert.Nil(t, out.Current())

	out = &WrongExpectedVersion{}
	require.NoError(t, Unmarshal(Marshal(&WrongExpectedVersion{
		CurrentNoStream2060: &Empty{},
		CurrentRevision:     Uint64(4),
	}), out))
	require.NotNil(t, out.Current())
	assert.EqualValues(t, 4, *out.Current())
}
