package esdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// StreamRevision is the sequence number of an event within its stream.
type StreamRevision uint64

func (r StreamRevision) String() string {
	return strconv.FormatUint(uint64(r), 10)
}

func (StreamRevision) isRevisionSelector() {}
func (StreamRevision) isExpectedRevision() {}

// AllPosition is a position in the global log. Positions are ordered by commit, then by prepare.
type AllPosition struct {
	Commit  uint64
	Prepare uint64
}

func (p AllPosition) Compare(o AllPosition) int {
	switch {
	case p.Commit < o.Commit:
		return -1
	case p.Commit > o.Commit:
		return 1
	case p.Prepare < o.Prepare:
		return -1
	case p.Prepare > o.Prepare:
		return 1
	}
	return 0
}

func (p AllPosition) Less(o AllPosition) bool {
	return p.Compare(o) < 0
}

func (p AllPosition) String() string {
	return fmt.Sprintf("C:%d/P:%d", p.Commit, p.Prepare)
}

func (AllPosition) isPositionSelector() {}

// ParseAllPosition parses the C:<commit>/P:<prepare> form returned by AllPosition.String.
func ParseAllPosition(s string) (AllPosition, error) {
	var p AllPosition
	parts := strings.Split(s, "/")
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "C:") || !strings.HasPrefix(parts[1], "P:") {
		return p, errors.Errorf("invalid position %q", s)
	}
	var err error
	if p.Commit, err = strconv.ParseUint(parts[0][2:], 10, 64); err != nil {
		return p, errors.Wrapf(err, "invalid commit position in %q", s)
	}
	if p.Prepare, err = strconv.ParseUint(parts[1][2:], 10, 64); err != nil {
		return p, errors.Wrapf(err, "invalid prepare position in %q", s)
	}
	return p, nil
}

// StreamPosition is a symbolic position: the beginning or the tail of a stream or of the global log.
type StreamPosition int

const (
	Start StreamPosition = iota
	End
)

func (p StreamPosition) String() string {
	if p == End {
		return "end"
	}
	return "start"
}

func (StreamPosition) isRevisionSelector() {}
func (StreamPosition) isPositionSelector() {}

// RevisionSelector selects a point in a stream: a StreamRevision or a StreamPosition. A nil selector means Start.
type RevisionSelector interface {
	isRevisionSelector()
}

// PositionSelector selects a point in the global log: an AllPosition or a StreamPosition. A nil selector means Start.
type PositionSelector interface {
	isPositionSelector()
}
