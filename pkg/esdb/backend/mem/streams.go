package mem

import (
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fission/esdb-client/pkg/esdb/backend"
	"github.com/fission/esdb-client/pkg/esdb/wire"
	"github.com/fission/esdb-client/pkg/util"
	"github.com/fission/esdb-client/pkg/util/pubsub"
)

// liveBuffer is the number of appends a live reader may lag behind before it is told it fell behind.
const liveBuffer = 500

// streamsService serves appends, reads and catch-up subscriptions.
type streamsService struct {
	*Server
}

func (s streamsService) Append(stream grpc.ClientStreamingServer[wire.AppendReq, wire.AppendResp]) error {
	header, err := stream.Recv()
	if err != nil {
		return err
	}
	if header.Options == nil {
		return status.Error(codes.InvalidArgument, "append must start with options")
	}
	name := header.Options.StreamIdentifier.Name()
	if name == "" {
		return status.Error(codes.InvalidArgument, "append without stream name")
	}

	var records []*Record
	for {
		req, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		msg := req.ProposedMessage
		if msg == nil {
			return status.Error(codes.InvalidArgument, "expected a proposed message")
		}
		id, err := msg.ID.Parse()
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "invalid event id: %v", err)
		}
		records = append(records, &Record{
			ID:             id,
			Type:           msg.Metadata[metadataType],
			ContentType:    msg.Metadata[metadataContentType],
			CustomMetadata: msg.CustomMetadata,
			Data:           msg.Data,
		})
	}

	last, err := s.store.Append(name, expectation(header.Options), records)
	if err != nil {
		if conflict, ok := err.(*Conflict); ok {
			s.log.WithFields(logrus.Fields{
				"stream.name": name,
				"expected":    conflict.Expected,
			}).Debug("Append rejected.")
			return stream.SendAndClose(&wire.AppendResp{WrongExpectedVersion: conflict.toWire()})
		}
		return status.Error(codes.Internal, err.Error())
	}

	success := &wire.AppendSuccess{}
	if last == nil {
		success.NoStream = &wire.Empty{}
		success.NoPosition = &wire.Empty{}
	} else {
		success.CurrentRevision = wire.Uint64(last.Revision)
		success.Position = &wire.Position{CommitPosition: last.Position, PreparePosition: last.Position}
	}
	s.log.WithFields(logrus.Fields{
		"stream.name": name,
		"events":      len(records),
	}).Debug("Appended events.")
	return stream.SendAndClose(&wire.AppendResp{Success: success})
}

func expectation(opts *wire.AppendReqOptions) Expectation {
	switch {
	case opts.Revision != nil:
		return Expectation{Kind: ExpectRevision, Revision: *opts.Revision}
	case opts.NoStream != nil:
		return Expectation{Kind: ExpectNoStream}
	case opts.StreamExists != nil:
		return Expectation{Kind: ExpectStreamExists}
	default:
		return Expectation{Kind: ExpectAny}
	}
}

func (s streamsService) Read(req *wire.ReadReq, stream grpc.ServerStreamingServer[wire.ReadResp]) error {
	opts := req.Options
	if opts == nil || (opts.Stream == nil) == (opts.All == nil) {
		return status.Error(codes.InvalidArgument, "read must target either a stream or all")
	}
	f, err := compileFilter(opts.Filter)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	r := &reader{
		store:        s.store,
		stream:       stream,
		resolveLinks: opts.ResolveLinks,
		filter:       f,
	}
	if opts.Stream != nil {
		r.streamName = opts.Stream.StreamIdentifier.Name()
	}

	if opts.Subscription != nil {
		return r.subscribe(opts)
	}
	count := uint64(math.MaxUint64)
	if opts.Count != nil {
		count = *opts.Count
	}
	backwards := opts.ReadDirection == wire.Backwards
	if opts.Stream != nil {
		records, ok := s.store.Stream(r.streamName)
		if !ok {
			return stream.Send(&wire.ReadResp{
				StreamNotFound: &wire.StreamNotFound{StreamIdentifier: wire.NewStreamIdentifier(r.streamName)},
			})
		}
		from := readFrom(opts.Stream.Revision, opts.Stream.End != nil, len(records), backwards, false)
		return r.readRange(records, from, backwards, count)
	}
	records := s.store.All()
	var pos *uint64
	if opts.All.Position != nil {
		pos = &opts.All.Position.CommitPosition
	}
	// Backward reads of the global log exclude the given position.
	from := readFrom(pos, opts.All.End != nil, len(records), backwards, true)
	return r.readRange(records, from, backwards, count)
}

// readFrom returns the index a read starts at. Reads forwards include the index. Reads backwards include it
// unless exclusive is set.
func readFrom(at *uint64, end bool, length int, backwards bool, exclusive bool) int {
	switch {
	case end && backwards:
		return length - 1
	case end:
		return length
	case at == nil:
		return 0
	case backwards:
		i := int64(*at)
		if exclusive {
			i--
		}
		if i > int64(length-1) {
			i = int64(length - 1)
		}
		return int(i)
	default:
		if *at > uint64(length) {
			return length
		}
		return int(*at)
	}
}

// index converts a revision or commit position to a log index, saturating at math.MaxInt.
func index(at uint64) int {
	if at >= math.MaxInt {
		return math.MaxInt
	}
	return int(at)
}

// after is the index following at, saturating at math.MaxInt.
func after(at uint64) int {
	if i := index(at); i < math.MaxInt {
		return i + 1
	}
	return math.MaxInt
}

type reader struct {
	store        *Store
	stream       grpc.ServerStreamingServer[wire.ReadResp]
	streamName   string
	resolveLinks bool
	filter       *filter
	// scanned counts records examined since the last checkpoint.
	scanned uint64
}

func (r *reader) readRange(records []*Record, from int, backwards bool, count uint64) error {
	step := 1
	if backwards {
		step = -1
	}
	for i := from; i >= 0 && i < len(records) && count > 0; i += step {
		if !r.filter.match(records[i]) {
			continue
		}
		if err := r.send(records[i]); err != nil {
			return err
		}
		count--
	}
	return nil
}

func (r *reader) send(rec *Record) error {
	return r.stream.Send(&wire.ReadResp{Event: r.store.ReadEvent(rec, r.resolveLinks)})
}

func (r *reader) records() []*Record {
	if r.streamName != "" {
		records, _ := r.store.Stream(r.streamName)
		return records
	}
	return r.store.All()
}

// subscribe confirms the subscription, catches up from the requested point and then follows the log until the
// client goes away.
func (r *reader) subscribe(opts *wire.ReadReqOptions) error {
	matcher := func(msg pubsub.Msg) bool { return true }
	if r.streamName != "" {
		matcher = func(msg pubsub.Msg) bool {
			rec, ok := msg.(*Record)
			return ok && rec.Stream == r.streamName
		}
	}
	sub := r.store.Subscribe(pubsub.SubscriptionOptions{Buf: liveBuffer, Matcher: matcher})
	defer r.store.Unsubscribe(sub)
	backend.Subscriptions.WithLabelValues("catch-up").Inc()
	defer backend.Subscriptions.WithLabelValues("catch-up").Dec()

	if err := r.stream.Send(&wire.ReadResp{
		Confirmation: &wire.SubscriptionConfirmation{SubscriptionID: util.Uid()},
	}); err != nil {
		return err
	}

	cursor := r.subscribeFrom(opts)
	var err error
	if cursor, err = r.catchUp(cursor); err != nil {
		return err
	}
	if err := r.stream.Send(&wire.ReadResp{CaughtUp: &wire.Empty{}}); err != nil {
		return err
	}

	ctx := r.stream.Context()
	// Drops since the subscription was created count, including those during the initial catch-up.
	var dropped uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Ch:
			if !ok {
				return status.Error(codes.Unavailable, "store closed")
			}
			if d := sub.Dropped(); d != dropped {
				dropped = d
				if err := r.stream.Send(&wire.ReadResp{FellBehind: &wire.Empty{}}); err != nil {
					return err
				}
				if cursor, err = r.catchUp(cursor); err != nil {
					return err
				}
				if err := r.stream.Send(&wire.ReadResp{CaughtUp: &wire.Empty{}}); err != nil {
					return err
				}
				continue
			}
			if cursor, err = r.catchUp(cursor); err != nil {
				return err
			}
			backend.EventDelay.Observe(float64(time.Since(msg.CreatedAt()).Nanoseconds()))
		}
	}
}

// subscribeFrom returns the first index delivered. Subscriptions start after the given revision or position.
func (r *reader) subscribeFrom(opts *wire.ReadReqOptions) int {
	if opts.Stream != nil {
		switch {
		case opts.Stream.Revision != nil:
			return after(*opts.Stream.Revision)
		case opts.Stream.End != nil:
			return len(r.records())
		}
		return 0
	}
	switch {
	case opts.All.Position != nil:
		return after(opts.All.Position.CommitPosition)
	case opts.All.End != nil:
		return len(r.records())
	}
	return 0
}

// catchUp sends every record from cursor to the current end of the log and returns the new cursor.
func (r *reader) catchUp(cursor int) (int, error) {
	records := r.records()
	for ; cursor < len(records); cursor++ {
		rec := records[cursor]
		if r.filter.match(rec) {
			if err := r.send(rec); err != nil {
				return cursor, err
			}
		}
		if r.filter == nil {
			continue
		}
		r.scanned++
		if r.scanned >= r.filter.checkpointEvery {
			r.scanned = 0
			if err := r.stream.Send(&wire.ReadResp{
				Checkpoint: &wire.Position{CommitPosition: rec.Position, PreparePosition: rec.Position},
			}); err != nil {
				return cursor, err
			}
		}
	}
	return cursor, nil
}
