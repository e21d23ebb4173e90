package mem

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

const defaultFilterWindow = 32

// filter is a compiled wire.FilterOptions. A nil filter matches everything.
type filter struct {
	streamName *expression
	eventType  *expression
	// checkpointEvery is the number of scanned events after which a checkpoint is due.
	checkpointEvery uint64
}

type expression struct {
	regex    *regexp.Regexp
	prefixes []string
}

func compileFilter(opts *wire.FilterOptions) (*filter, error) {
	if opts == nil {
		return nil, nil
	}
	f := &filter{}
	var err error
	if f.streamName, err = compileExpression(opts.StreamIdentifier); err != nil {
		return nil, err
	}
	if f.eventType, err = compileExpression(opts.EventType); err != nil {
		return nil, err
	}
	window := uint64(defaultFilterWindow)
	if opts.Max != nil && *opts.Max > 0 {
		window = uint64(*opts.Max)
	}
	multiplier := uint64(opts.CheckpointIntervalMultiplier)
	if multiplier == 0 {
		multiplier = 1
	}
	f.checkpointEvery = window * multiplier
	return f, nil
}

func compileExpression(e *wire.FilterExpression) (*expression, error) {
	if e == nil {
		return nil, nil
	}
	if len(e.Prefix) > 0 {
		return &expression{prefixes: e.Prefix}, nil
	}
	re, err := regexp.Compile(e.Regex)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid filter regex %q", e.Regex)
	}
	return &expression{regex: re}, nil
}

func (e *expression) match(s string) bool {
	if e == nil {
		return true
	}
	if e.regex != nil {
		return e.regex.MatchString(s)
	}
	for _, p := range e.prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (f *filter) match(r *Record) bool {
	if f == nil {
		return true
	}
	return f.streamName.match(r.Stream) && f.eventType.match(r.Type)
}
