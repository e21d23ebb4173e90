package esdb

import (
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllPosition_Compare(t *testing.T) {
	a := AllPosition{Commit: 1, Prepare: 5}
	b := AllPosition{Commit: 2, Prepare: 0}
	c := AllPosition{Commit: 2, Prepare: 1}

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, c.Compare(b))
	assert.Equal(t, 0, b.Compare(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
}

func TestParseAllPosition(t *testing.T) {
	p, err := ParseAllPosition("C:12/P:10")
	require.NoError(t, err)
	assert.Equal(t, AllPosition{Commit: 12, Prepare: 10}, p)
	assert.Equal(t, "C:12/P:10", p.String())

	for _, invalid := range []string{"", "12/10", "C:x/P:1", "C:1/P:-1", "P:1/C:1"} {
		_, err := ParseAllPosition(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestPersistentSubscriptionEvent_OriginalID(t *testing.T) {
	event := &RecordedEvent{ID: uuid.NewV4()}
	link := &RecordedEvent{ID: uuid.NewV4()}

	id, err := (&PersistentSubscriptionEvent{ReadEvent: ReadEvent{Event: event, Link: link}}).OriginalID()
	require.NoError(t, err)
	assert.Equal(t, link.ID, id)

	id, err = (&PersistentSubscriptionEvent{ReadEvent: ReadEvent{Event: event}}).OriginalID()
	require.NoError(t, err)
	assert.Equal(t, event.ID, id)

	_, err = (&PersistentSubscriptionEvent{}).OriginalID()
	assert.Error(t, err)
}
