package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

func TestCompileFilter(t *testing.T) {
	f, err := compileFilter(nil)
	require.NoError(t, err)
	assert.True(t, f.match(&Record{Type: "$system"}))

	max := uint32(4)
	f, err = compileFilter(&wire.FilterOptions{
		EventType:                    &wire.FilterExpression{Regex: `^[^\$].*`},
		Max:                          &max,
		CheckpointIntervalMultiplier: 3,
	})
	require.NoError(t, err)
	assert.True(t, f.match(&Record{Type: "order-placed"}))
	assert.False(t, f.match(&Record{Type: "$metadata"}))
	assert.EqualValues(t, 12, f.checkpointEvery)

	f, err = compileFilter(&wire.FilterOptions{
		StreamIdentifier: &wire.FilterExpression{Prefix: []string{"order-", "invoice-"}},
		Count:            &wire.Empty{},
	})
	require.NoError(t, err)
	assert.True(t, f.match(&Record{Stream: "invoice-1"}))
	assert.False(t, f.match(&Record{Stream: "customer-1"}))
	assert.EqualValues(t, defaultFilterWindow, f.checkpointEvery)

	_, err = compileFilter(&wire.FilterOptions{EventType: &wire.FilterExpression{Regex: "("}})
	assert.Error(t, err)
}
