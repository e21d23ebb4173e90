package esdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilter_Exclusive(t *testing.T) {
	filters := []Filter{
		ExcludeSystemEventsFilter{},
		EventTypeFilter{Regex: "^order"},
		EventTypeFilter{Prefixes: []string{"order"}},
		StreamNameFilter{Regex: "^orders-"},
		&StreamNameFilter{Prefixes: []string{"orders-"}},
		&ExcludeSystemEventsFilter{},
	}
	for _, f := range filters {
		opts, noFilter := compileFilter(f, nil, 0)
		require.NotNil(t, opts, "%T", f)
		assert.Nil(t, noFilter, "%T", f)
		assert.True(t, (opts.EventType == nil) != (opts.StreamIdentifier == nil), "%T", f)
	}

	opts, noFilter := compileFilter(nil, nil, 0)
	assert.Nil(t, opts)
	assert.NotNil(t, noFilter)
}

func TestCompileFilter_Expression(t *testing.T) {
	opts, _ := compileFilter(ExcludeSystemEventsFilter{}, nil, 0)
	assert.Equal(t, excludeSystemEventsRegex, opts.EventType.Regex)
	assert.NotNil(t, opts.Count)
	assert.Nil(t, opts.Max)
	assert.EqualValues(t, 1, opts.CheckpointIntervalMultiplier)

	window := uint32(50)
	opts, _ = compileFilter(StreamNameFilter{Regex: "ignored", Prefixes: []string{"a", "b"}}, &window, 3)
	assert.Nil(t, opts.EventType)
	assert.Empty(t, opts.StreamIdentifier.Regex)
	assert.Equal(t, []string{"a", "b"}, opts.StreamIdentifier.Prefix)
	require.NotNil(t, opts.Max)
	assert.EqualValues(t, 50, *opts.Max)
	assert.Nil(t, opts.Count)
	assert.EqualValues(t, 3, opts.CheckpointIntervalMultiplier)
}
