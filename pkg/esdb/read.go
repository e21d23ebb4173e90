package esdb

import (
	"context"
	"io"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

type Direction int32

const (
	Forwards Direction = iota
	Backwards
)

func (d Direction) String() string {
	if d == Backwards {
		return "backwards"
	}
	return "forwards"
}

type ReadStreamOptions struct {
	// From is where the read starts, inclusive. Nil means Start.
	From      RevisionSelector
	Direction Direction
	// MaxCount caps the number of events read. Zero means unbounded.
	MaxCount     uint64
	ResolveLinks bool
}

type ReadAllOptions struct {
	// From is where the read starts. Nil means Start.
	From         PositionSelector
	Direction    Direction
	MaxCount     uint64
	ResolveLinks bool
	Filter       Filter
}

func maxCount(n uint64) uint64 {
	if n == 0 {
		return math.MaxUint64
	}
	return n
}

// ReadStream reads a range of a stream. The read is evaluated lazily by the returned iterator; a missing stream is
// reported by the iterator as a *StreamNotFoundError.
func (c *Client) ReadStream(ctx context.Context, streamName string, opts ReadStreamOptions) (*ReadIterator, error) {
	count := maxCount(opts.MaxCount)
	req := newReadStreamReq(streamName, opts.From, opts.Direction, opts.ResolveLinks, &count)
	return c.read(ctx, streamName, req, count)
}

// ReadAll reads a range of the global log.
func (c *Client) ReadAll(ctx context.Context, opts ReadAllOptions) (*ReadIterator, error) {
	count := maxCount(opts.MaxCount)
	filter, noFilter := compileFilter(opts.Filter, nil, 1)
	req := newReadAllReq(opts.From, opts.Direction, opts.ResolveLinks, &count, filter, noFilter)
	return c.read(ctx, AllStreamName, req, count)
}

func (c *Client) read(ctx context.Context, streamName string, req *wire.ReadReq, count uint64) (*ReadIterator, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.streams.Read(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return &ReadIterator{
		stream:    stream,
		cancel:    cancel,
		remaining: count,
		log: c.log.WithFields(logrus.Fields{
			"stream.name": streamName,
		}),
	}, nil
}

// ReadIterator yields the events of a read. It is not safe for concurrent use and cannot be restarted.
type ReadIterator struct {
	stream    grpc.ServerStreamingClient[wire.ReadResp]
	cancel    context.CancelFunc
	closeOnce sync.Once
	remaining uint64
	err       error
	log       *logrus.Entry
}

// Next returns the next event, Done once the read is exhausted, or the error that ended it.
func (it *ReadIterator) Next() (*ReadEvent, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.remaining == 0 {
		return nil, it.fail(Done)
	}
	for {
		resp, err := it.stream.Recv()
		if err == io.EOF {
			return nil, it.fail(Done)
		}
		if err != nil {
			return nil, it.fail(err)
		}
		content, err := decodeReadResp("read", resp)
		if err != nil {
			return nil, it.fail(err)
		}
		switch v := content.(type) {
		case *ReadEvent:
			it.remaining--
			eventsReceived.WithLabelValues(sourceRead).Inc()
			return v, nil
		case *StreamNotFoundError:
			return nil, it.fail(v)
		case streamMarker, Checkpoint:
			continue
		default:
			return nil, it.fail(protocolError("read", "unexpected %T", v))
		}
	}
}

// Collect drains the iterator. A read that ends normally returns a nil error.
func (it *ReadIterator) Collect() ([]*ReadEvent, error) {
	defer it.Close()
	var events []*ReadEvent
	for {
		ev, err := it.Next()
		if err == Done {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// Close releases the read. It is safe to call more than once.
func (it *ReadIterator) Close() {
	it.closeOnce.Do(it.cancel)
}

func (it *ReadIterator) fail(err error) error {
	it.err = err
	if err != Done {
		it.log.WithError(err).Debug("Read failed.")
	}
	it.Close()
	return err
}
