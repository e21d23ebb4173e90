package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/fission/esdb-client/pkg/esdb"
)

func parseExpected(s string) (esdb.ExpectedRevision, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return esdb.Any{}, nil
	case "no-stream":
		return esdb.NoStream{}, nil
	case "exists", "stream-exists":
		return esdb.StreamExists{}, nil
	}
	rev, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, errors.Errorf("invalid expected revision %q: use any, no-stream, exists or a revision", s)
	}
	return esdb.StreamRevision(rev), nil
}

func parseRevision(s string) (esdb.RevisionSelector, error) {
	switch strings.ToLower(s) {
	case "", "start":
		return esdb.Start, nil
	case "end":
		return esdb.End, nil
	}
	rev, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, errors.Errorf("invalid revision %q: use start, end or a revision", s)
	}
	return esdb.StreamRevision(rev), nil
}

func parsePosition(s string) (esdb.PositionSelector, error) {
	switch strings.ToLower(s) {
	case "", "start":
		return esdb.Start, nil
	case "end":
		return esdb.End, nil
	}
	pos, err := esdb.ParseAllPosition(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid position %q", s)
	}
	return pos, nil
}

func parseFilter(eventPrefix, streamPrefix string, excludeSystem bool) esdb.Filter {
	switch {
	case eventPrefix != "":
		return esdb.EventTypeFilter{Prefixes: strings.Split(eventPrefix, ",")}
	case streamPrefix != "":
		return esdb.StreamNameFilter{Prefixes: strings.Split(streamPrefix, ",")}
	case excludeSystem:
		return esdb.ExcludeSystemEventsFilter{}
	}
	return nil
}

var eventHeadings = []string{"STREAM", "REVISION", "TYPE", "POSITION", "CREATED", "DATA"}

func eventRow(ev *esdb.ReadEvent, withData bool) []string {
	e := ev.OriginalEvent()
	typ := e.Type
	if ev.Link != nil && ev.Event != nil {
		typ = fmt.Sprintf("%s -> %s@%d", e.Type, ev.Event.StreamName, ev.Event.Revision)
	}
	data := ""
	if withData {
		if e.IsJSON() {
			data = string(e.Data)
		} else {
			data = fmt.Sprintf("<%d bytes>", len(e.Data))
		}
	}
	created := ""
	if !e.Created.IsZero() {
		created = e.Created.Local().Format(time.RFC3339)
	}
	return []string{e.StreamName, e.Revision.String(), typ, e.Position.String(), created, data}
}

func subscriptionLine(msg esdb.SubscriptionMessage, withData bool) string {
	switch v := msg.(type) {
	case *esdb.ReadEvent:
		return color.HiYellowString(strings.Join(eventRow(v, withData), "  "))
	case esdb.CaughtUp:
		return color.HiGreenString("-- caught up --")
	case esdb.FellBehind:
		return color.HiRedString("-- fell behind --")
	}
	return fmt.Sprintf("%v", msg)
}
