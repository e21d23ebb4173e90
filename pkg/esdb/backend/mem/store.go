// Package mem is an in-memory event store for development and testing. It serves the streams and persistent
// subscriptions gRPC services over a Store that keeps every event in memory.
package mem

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/fission/esdb-client/pkg/esdb/backend"
	"github.com/fission/esdb-client/pkg/esdb/wire"
	"github.com/fission/esdb-client/pkg/util/pubsub"
)

const (
	metadataType        = "type"
	metadataContentType = "content-type"
	metadataCreated     = "created"

	// linkEventType marks an event whose data, "<revision>@<stream>", points to another event.
	linkEventType = "$>"
)

// Record is a stored event. Records are immutable once appended.
type Record struct {
	Stream         string
	ID             uuid.UUID
	Type           string
	ContentType    string
	Revision       uint64
	Position       uint64
	Created        time.Time
	CustomMetadata []byte
	Data           []byte
}

func (r *Record) CreatedAt() time.Time {
	return r.Created
}

func (r *Record) toWire() *wire.RecordedEvent {
	return &wire.RecordedEvent{
		ID:               wire.NewUUID(r.ID),
		StreamIdentifier: wire.NewStreamIdentifier(r.Stream),
		StreamRevision:   r.Revision,
		PreparePosition:  r.Position,
		CommitPosition:   r.Position,
		Metadata: map[string]string{
			metadataType:        r.Type,
			metadataContentType: r.ContentType,
			metadataCreated:     strconv.FormatInt(r.Created.UnixNano()/100, 10),
		},
		CustomMetadata: r.CustomMetadata,
		Data:           r.Data,
	}
}

// ExpectKind is the optimistic concurrency check requested by an append.
type ExpectKind int

const (
	ExpectAny ExpectKind = iota
	ExpectNoStream
	ExpectStreamExists
	ExpectRevision
)

type Expectation struct {
	Kind     ExpectKind
	Revision uint64
}

// Conflict is returned by Append when the expectation does not hold.
type Conflict struct {
	Expected Expectation
	// Current is the current revision, nil if the stream does not exist.
	Current *uint64
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("wrong expected version: expected %+v, current %v", c.Expected, c.Current)
}

func (c *Conflict) toWire() *wire.WrongExpectedVersion {
	wev := &wire.WrongExpectedVersion{}
	if c.Current != nil {
		wev.CurrentRevision = wire.Uint64(*c.Current)
	} else {
		wev.CurrentNoStream = &wire.Empty{}
	}
	switch c.Expected.Kind {
	case ExpectNoStream:
		wev.ExpectedNoStream = &wire.Empty{}
	case ExpectStreamExists:
		wev.ExpectedStreamExists = &wire.Empty{}
	case ExpectRevision:
		wev.ExpectedRevision = wire.Uint64(c.Expected.Revision)
	default:
		wev.ExpectedAny = &wire.Empty{}
	}
	return wev
}

// Store is an in-memory, append-only log of streams. New records are published to subscribers of the store.
type Store struct {
	pubsub.Publisher
	log     []*Record
	streams map[string][]*Record
	lock    sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		Publisher: pubsub.NewPublisher(),
		streams:   map[string][]*Record{},
	}
}

// Append writes records to a stream, assigning their revisions and positions, if the expectation holds. It
// returns the last record of the stream after the append, nil if the stream does not exist.
func (s *Store) Append(stream string, expected Expectation, records []*Record) (*Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	existing, exists := s.streams[stream]
	var current *uint64
	if exists {
		rev := uint64(len(existing) - 1)
		current = &rev
	}

	var ok bool
	switch expected.Kind {
	case ExpectNoStream:
		ok = !exists
	case ExpectStreamExists:
		ok = exists
	case ExpectRevision:
		ok = exists && *current == expected.Revision
	default:
		ok = true
	}
	if !ok {
		backend.AppendConflicts.Inc()
		return nil, &Conflict{Expected: expected, Current: current}
	}
	if len(records) == 0 {
		if !exists {
			return nil, nil
		}
		return existing[len(existing)-1], nil
	}

	now := time.Now()
	for _, r := range records {
		r.Stream = stream
		r.Revision = uint64(len(existing))
		r.Position = uint64(len(s.log))
		r.Created = now
		existing = append(existing, r)
		s.log = append(s.log, r)
		backend.EventsAppended.WithLabelValues(r.Type).Inc()
	}
	s.streams[stream] = existing
	for _, r := range records {
		if err := s.Publish(r); err != nil {
			return nil, err
		}
	}
	return records[len(records)-1], nil
}

// Stream returns the records of a stream, and whether it exists.
func (s *Store) Stream(name string) ([]*Record, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	records, ok := s.streams[name]
	return records[:len(records):len(records)], ok
}

// All returns the global log.
func (s *Store) All() []*Record {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.log[:len(s.log):len(s.log)]
}

// Resolve returns the target of a link record, or nil if r is not a link or its target does not exist.
func (s *Store) Resolve(r *Record) *Record {
	if r.Type != linkEventType {
		return nil
	}
	parts := strings.SplitN(string(r.Data), "@", 2)
	if len(parts) != 2 {
		return nil
	}
	revision, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil
	}
	records, _ := s.Stream(parts[1])
	if revision >= uint64(len(records)) {
		return nil
	}
	return records[revision]
}

// ReadEvent builds the delivered form of r, resolving it if it is a link and resolveLinks is set.
func (s *Store) ReadEvent(r *Record, resolveLinks bool) *wire.ReadEvent {
	ev := &wire.ReadEvent{
		CommitPosition: wire.Uint64(r.Position),
	}
	if resolveLinks && r.Type == linkEventType {
		ev.Link = r.toWire()
		if target := s.Resolve(r); target != nil {
			ev.Event = target.toWire()
		}
		return ev
	}
	ev.Event = r.toWire()
	return ev
}
