package mem

import (
	"testing"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fission/esdb-client/pkg/util/pubsub"
)

func newRecords(types ...string) []*Record {
	var records []*Record
	for _, t := range types {
		records = append(records, &Record{
			ID:          uuid.NewV4(),
			Type:        t,
			ContentType: "application/octet-stream",
			Data:        []byte(t),
		})
	}
	return records
}

func TestStore_Append(t *testing.T) {
	store := NewStore()

	last, err := store.Append("a", Expectation{Kind: ExpectNoStream}, newRecords("T1", "T2"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, last.Revision)
	assert.EqualValues(t, 1, last.Position)

	// Event under new stream
	last, err = store.Append("b", Expectation{}, newRecords("T3"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, last.Revision)
	assert.EqualValues(t, 2, last.Position)

	last, err = store.Append("a", Expectation{Kind: ExpectRevision, Revision: 1}, newRecords("T4"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, last.Revision)

	records, ok := store.Stream("a")
	assert.True(t, ok)
	assert.Len(t, records, 3)
	assert.Len(t, store.All(), 4)
}

func TestStore_AppendConflicts(t *testing.T) {
	store := NewStore()
	_, err := store.Append("a", Expectation{}, newRecords("T1"))
	require.NoError(t, err)

	_, err = store.Append("a", Expectation{Kind: ExpectNoStream}, newRecords("T2"))
	conflict, ok := err.(*Conflict)
	require.True(t, ok)
	require.NotNil(t, conflict.Current)
	assert.EqualValues(t, 0, *conflict.Current)
	wev := conflict.toWire()
	assert.NotNil(t, wev.ExpectedNoStream)
	assert.EqualValues(t, 0, *wev.CurrentRevision)

	_, err = store.Append("a", Expectation{Kind: ExpectRevision, Revision: 5}, newRecords("T2"))
	conflict, ok = err.(*Conflict)
	require.True(t, ok)
	assert.EqualValues(t, 5, *conflict.toWire().ExpectedRevision)

	_, err = store.Append("missing", Expectation{Kind: ExpectStreamExists}, newRecords("T2"))
	conflict, ok = err.(*Conflict)
	require.True(t, ok)
	assert.Nil(t, conflict.Current)
	assert.NotNil(t, conflict.toWire().CurrentNoStream)

	records, _ := store.Stream("a")
	assert.Len(t, records, 1)
}

func TestStore_AppendNothing(t *testing.T) {
	store := NewStore()
	last, err := store.Append("a", Expectation{}, nil)
	assert.NoError(t, err)
	assert.Nil(t, last)

	_, ok := store.Stream("a")
	assert.False(t, ok)
}

func TestStore_Subscribe(t *testing.T) {
	store := NewStore()
	sub := store.Subscribe(pubsub.SubscriptionOptions{
		Buf: 10,
		Matcher: func(msg pubsub.Msg) bool {
			return msg.(*Record).Stream == "a"
		},
	})

	_, err := store.Append("a", Expectation{}, newRecords("T1", "T2"))
	require.NoError(t, err)
	_, err = store.Append("b", Expectation{}, newRecords("T3"))
	require.NoError(t, err)

	for _, expected := range []string{"T1", "T2"} {
		select {
		case msg := <-sub.Ch:
			assert.Equal(t, expected, msg.(*Record).Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for record")
		}
	}
	assert.Empty(t, sub.Ch)
}

func TestStore_ResolveLink(t *testing.T) {
	store := NewStore()
	_, err := store.Append("target", Expectation{}, newRecords("T1", "T2"))
	require.NoError(t, err)
	link := &Record{ID: uuid.NewV4(), Type: linkEventType, Data: []byte("1@target")}
	_, err = store.Append("links", Expectation{}, []*Record{link})
	require.NoError(t, err)

	resolved := store.Resolve(link)
	require.NotNil(t, resolved)
	assert.Equal(t, "T2", resolved.Type)

	ev := store.ReadEvent(link, true)
	require.NotNil(t, ev.Link)
	require.NotNil(t, ev.Event)
	assert.Equal(t, []byte("links"), ev.Link.StreamIdentifier.StreamName)
	assert.Equal(t, []byte("target"), ev.Event.StreamIdentifier.StreamName)

	ev = store.ReadEvent(link, false)
	assert.Nil(t, ev.Link)
	assert.Equal(t, linkEventType, ev.Event.Metadata[metadataType])

	assert.Nil(t, store.Resolve(&Record{Type: linkEventType, Data: []byte("7@target")}))
	assert.Nil(t, store.Resolve(&Record{Type: "T1", Data: []byte("0@target")}))
}
