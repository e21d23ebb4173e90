package esdb

import (
	"strconv"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

const (
	MetadataType        = "type"
	MetadataContentType = "content-type"
	// MetadataCreated holds the creation time in 100ns ticks since the Unix epoch.
	MetadataCreated = "created"
)

// AllStreamName is the name under which the global log is addressed where a stream name is expected.
const AllStreamName = "$all"

// streamMarker is read response content that only describes the bounds of the stream being read.
type streamMarker struct{}

//
// Outbound
//

func newAppendHeader(streamName string, expected ExpectedRevision) *wire.AppendReq {
	opts := &wire.AppendReqOptions{
		StreamIdentifier: wire.NewStreamIdentifier(streamName),
	}
	switch v := expectedOrAny(expected).(type) {
	case NoStream:
		opts.NoStream = &wire.Empty{}
	case StreamExists:
		opts.StreamExists = &wire.Empty{}
	case StreamRevision:
		opts.Revision = wire.Uint64(uint64(v))
	default:
		opts.Any = &wire.Empty{}
	}
	return &wire.AppendReq{Options: opts}
}

func newProposedMessage(e EventData) *wire.AppendReq {
	id := e.ID
	if uuid.Equal(id, uuid.Nil) {
		id = uuid.NewV4()
	}
	contentType := e.ContentType
	if contentType == "" {
		contentType = ContentTypeBinary
	}
	return &wire.AppendReq{
		ProposedMessage: &wire.ProposedMessage{
			ID: wire.NewUUID(id),
			Metadata: map[string]string{
				MetadataType:        e.Type,
				MetadataContentType: string(contentType),
			},
			CustomMetadata: e.Metadata,
			Data:           e.Data,
		},
	}
}

func revisionOptions(sel RevisionSelector) (rev *uint64, start, end *wire.Empty) {
	switch v := sel.(type) {
	case StreamRevision:
		return wire.Uint64(uint64(v)), nil, nil
	case StreamPosition:
		if v == End {
			return nil, nil, &wire.Empty{}
		}
	}
	return nil, &wire.Empty{}, nil
}

func positionOptions(sel PositionSelector) (pos *wire.Position, start, end *wire.Empty) {
	switch v := sel.(type) {
	case AllPosition:
		return &wire.Position{CommitPosition: v.Commit, PreparePosition: v.Prepare}, nil, nil
	case StreamPosition:
		if v == End {
			return nil, nil, &wire.Empty{}
		}
	}
	return nil, &wire.Empty{}, nil
}

func uuidOption() *wire.UUIDOption {
	return &wire.UUIDOption{Text: &wire.Empty{}}
}

// newReadStreamReq builds a read of a single stream. A nil count makes it a subscription.
func newReadStreamReq(streamName string, from RevisionSelector, dir Direction, resolveLinks bool,
	count *uint64) *wire.ReadReq {
	rev, start, end := revisionOptions(from)
	opts := &wire.ReadReqOptions{
		Stream: &wire.ReadStreamOptions{
			StreamIdentifier: wire.NewStreamIdentifier(streamName),
			Revision:         rev,
			Start:            start,
			End:              end,
		},
		ReadDirection: wire.ReadDirection(dir),
		ResolveLinks:  resolveLinks,
		NoFilter:      &wire.Empty{},
		UUIDOption:    uuidOption(),
	}
	setCount(opts, count)
	return &wire.ReadReq{Options: opts}
}

// newReadAllReq builds a read of the global log. A nil count makes it a subscription.
func newReadAllReq(from PositionSelector, dir Direction, resolveLinks bool, count *uint64,
	filter *wire.FilterOptions, noFilter *wire.Empty) *wire.ReadReq {
	pos, start, end := positionOptions(from)
	opts := &wire.ReadReqOptions{
		All: &wire.ReadAllOptions{
			Position: pos,
			Start:    start,
			End:      end,
		},
		ReadDirection: wire.ReadDirection(dir),
		ResolveLinks:  resolveLinks,
		Filter:        filter,
		NoFilter:      noFilter,
		UUIDOption:    uuidOption(),
	}
	setCount(opts, count)
	return &wire.ReadReq{Options: opts}
}

func setCount(opts *wire.ReadReqOptions, count *uint64) {
	if count != nil {
		opts.Count = count
	} else {
		opts.Subscription = &wire.Empty{}
	}
}

// newPersistentReadReq registers with a group. An empty stream name registers with a group on the global log.
func newPersistentReadReq(streamName, group string, bufferSize int32) *wire.PersistentReadReq {
	opts := &wire.PersistentReadReqOptions{
		GroupName:  group,
		BufferSize: bufferSize,
		UUIDOption: uuidOption(),
	}
	if streamName == "" || streamName == AllStreamName {
		opts.All = &wire.Empty{}
	} else {
		opts.StreamIdentifier = wire.NewStreamIdentifier(streamName)
	}
	return &wire.PersistentReadReq{Options: opts}
}

func wireIDs(ids []uuid.UUID) []*wire.UUID {
	out := make([]*wire.UUID, len(ids))
	for i, id := range ids {
		out[i] = wire.NewUUID(id)
	}
	return out
}

func newAck(ids []uuid.UUID) *wire.PersistentReadReq {
	return &wire.PersistentReadReq{Ack: &wire.Ack{IDs: wireIDs(ids)}}
}

func newNack(action NackAction, reason string, ids []uuid.UUID) *wire.PersistentReadReq {
	return &wire.PersistentReadReq{Nack: &wire.Nack{
		IDs:    wireIDs(ids),
		Action: wire.NackAction(action),
		Reason: reason,
	}}
}

//
// Inbound
//

// decodeReadResp classifies a read response. The result is one of *ReadEvent, SubscriptionConfirmation,
// Checkpoint, CaughtUp, FellBehind, *StreamNotFoundError or streamMarker.
func decodeReadResp(op string, resp *wire.ReadResp) (interface{}, error) {
	switch {
	case resp.Event != nil:
		return convertReadEvent(op, resp.Event)
	case resp.Confirmation != nil:
		return SubscriptionConfirmation{ID: resp.Confirmation.SubscriptionID}, nil
	case resp.Checkpoint != nil:
		return Checkpoint{Position: AllPosition{
			Commit:  resp.Checkpoint.CommitPosition,
			Prepare: resp.Checkpoint.PreparePosition,
		}}, nil
	case resp.CaughtUp != nil:
		return CaughtUp{}, nil
	case resp.FellBehind != nil:
		return FellBehind{}, nil
	case resp.StreamNotFound != nil:
		return &StreamNotFoundError{StreamName: resp.StreamNotFound.StreamIdentifier.Name()}, nil
	case resp.FirstStreamPosition != nil, resp.LastStreamPosition != nil, resp.LastAllStreamPosition != nil:
		return streamMarker{}, nil
	}
	return nil, protocolError(op, "read response without content")
}

// decodePersistentReadResp classifies a persistent subscription response into a *PersistentSubscriptionEvent or
// a SubscriptionConfirmation.
func decodePersistentReadResp(resp *wire.PersistentReadResp) (interface{}, error) {
	const op = "persistent subscription"
	switch {
	case resp.Event != nil:
		ev, err := convertReadEvent(op, resp.Event)
		if err != nil {
			return nil, err
		}
		var retryCount int32
		if resp.Event.RetryCount != nil && *resp.Event.RetryCount > 0 {
			retryCount = *resp.Event.RetryCount
		}
		return &PersistentSubscriptionEvent{ReadEvent: *ev, RetryCount: retryCount}, nil
	case resp.SubscriptionConfirmation != nil:
		return SubscriptionConfirmation{ID: resp.SubscriptionConfirmation.SubscriptionID}, nil
	}
	return nil, protocolError(op, "response without content")
}

func convertReadEvent(op string, w *wire.ReadEvent) (*ReadEvent, error) {
	if w.Event == nil && w.Link == nil {
		return nil, protocolError(op, "event has neither a link nor a recorded event")
	}
	ev := &ReadEvent{}
	var err error
	if w.Event != nil {
		if ev.Event, err = convertRecordedEvent(op, w.Event); err != nil {
			return nil, err
		}
	}
	if w.Link != nil {
		if ev.Link, err = convertRecordedEvent(op, w.Link); err != nil {
			return nil, err
		}
	}
	if w.CommitPosition != nil {
		pos := *w.CommitPosition
		ev.CommitPosition = &pos
	}
	return ev, nil
}

func convertRecordedEvent(op string, w *wire.RecordedEvent) (*RecordedEvent, error) {
	id, err := w.ID.Parse()
	if err != nil {
		return nil, protocolError(op, "invalid event id: %v", err)
	}
	contentType := ContentType(w.Metadata[MetadataContentType])
	if contentType != ContentTypeJSON {
		contentType = ContentTypeBinary
	}
	ev := &RecordedEvent{
		StreamName:  w.StreamIdentifier.Name(),
		ID:          id,
		Type:        w.Metadata[MetadataType],
		ContentType: contentType,
		Revision:    StreamRevision(w.StreamRevision),
		Position: AllPosition{
			Commit:  w.CommitPosition,
			Prepare: w.PreparePosition,
		},
		Data:     w.Data,
		Metadata: w.CustomMetadata,
	}
	if created, ok := w.Metadata[MetadataCreated]; ok {
		ticks, err := strconv.ParseInt(created, 10, 64)
		if err != nil {
			return nil, protocolError(op, "invalid created timestamp %q", created)
		}
		ev.Created = TicksToTime(ticks)
	}
	return ev, nil
}

// TicksToTime converts 100ns ticks since the Unix epoch.
func TicksToTime(ticks int64) time.Time {
	return time.Unix(0, ticks*100).UTC()
}

// TimeToTicks is the inverse of TicksToTime.
func TimeToTicks(t time.Time) int64 {
	return t.UnixNano() / 100
}
