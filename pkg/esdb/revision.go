package esdb

// ExpectedRevision is the optimistic concurrency check of an append: NoStream, Any, StreamExists or a
// StreamRevision. A nil ExpectedRevision means Any.
type ExpectedRevision interface {
	isExpectedRevision()
}

// NoStream expects the stream not to exist.
type NoStream struct{}

// Any disables the concurrency check.
type Any struct{}

// StreamExists expects the stream to exist, at any revision.
type StreamExists struct{}

func (NoStream) isExpectedRevision()     {}
func (Any) isExpectedRevision()          {}
func (StreamExists) isExpectedRevision() {}

func (NoStream) String() string     { return "no stream" }
func (Any) String() string          { return "any" }
func (StreamExists) String() string { return "stream exists" }

func expectedOrAny(r ExpectedRevision) ExpectedRevision {
	if r == nil {
		return Any{}
	}
	return r
}
