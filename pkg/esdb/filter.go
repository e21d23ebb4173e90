package esdb

import (
	"github.com/fission/esdb-client/pkg/esdb/wire"
)

// excludeSystemEventsRegex matches event types that do not start with '$'.
const excludeSystemEventsRegex = `^[^\$].*`

// Filter restricts a read or subscription on the global log. Prefixes take precedence over Regex when both are set.
type Filter interface {
	isFilter()
}

// ExcludeSystemEventsFilter drops events whose type starts with '$'.
type ExcludeSystemEventsFilter struct{}

type EventTypeFilter struct {
	Regex    string
	Prefixes []string
}

type StreamNameFilter struct {
	Regex    string
	Prefixes []string
}

func (ExcludeSystemEventsFilter) isFilter() {}
func (EventTypeFilter) isFilter()           {}
func (StreamNameFilter) isFilter()          {}

// compileFilter returns exactly one of a filter expression or the no-filter marker.
//
// window bounds how many events the server scans before sending a checkpoint; nil leaves it to the server.
// A zero checkpoint interval is treated as 1.
func compileFilter(f Filter, window *uint32, checkpointInterval uint32) (*wire.FilterOptions, *wire.Empty) {
	if f == nil {
		return nil, &wire.Empty{}
	}

	opts := &wire.FilterOptions{
		CheckpointIntervalMultiplier: checkpointInterval,
	}
	if opts.CheckpointIntervalMultiplier == 0 {
		opts.CheckpointIntervalMultiplier = 1
	}
	if window != nil {
		max := *window
		opts.Max = &max
	} else {
		opts.Count = &wire.Empty{}
	}

	switch v := f.(type) {
	case ExcludeSystemEventsFilter:
		opts.EventType = &wire.FilterExpression{Regex: excludeSystemEventsRegex}
	case EventTypeFilter:
		opts.EventType = filterExpression(v.Regex, v.Prefixes)
	case StreamNameFilter:
		opts.StreamIdentifier = filterExpression(v.Regex, v.Prefixes)
	case *ExcludeSystemEventsFilter:
		opts.EventType = &wire.FilterExpression{Regex: excludeSystemEventsRegex}
	case *EventTypeFilter:
		opts.EventType = filterExpression(v.Regex, v.Prefixes)
	case *StreamNameFilter:
		opts.StreamIdentifier = filterExpression(v.Regex, v.Prefixes)
	default:
		return nil, &wire.Empty{}
	}
	return opts, nil
}

func filterExpression(regex string, prefixes []string) *wire.FilterExpression {
	if len(prefixes) > 0 {
		return &wire.FilterExpression{Prefix: append([]string{}, prefixes...)}
	}
	return &wire.FilterExpression{Regex: regex}
}
