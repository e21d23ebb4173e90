package esdb

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

type AppendOptions struct {
	// ExpectedRevision is checked by the server before writing. Nil means Any.
	ExpectedRevision ExpectedRevision
}

type AppendResult struct {
	Success bool
	// NextExpectedRevision is the revision of the last event written.
	NextExpectedRevision StreamRevision
	// Position is the global position of the write, if the server reported it.
	Position *AllPosition
}

// AppendToStream appends events to a stream as a single write. A failed concurrency check is reported as a
// *WrongExpectedRevisionError; the append is never retried.
func (c *Client) AppendToStream(ctx context.Context, streamName string, opts AppendOptions,
	events ...EventData) (*AppendResult, error) {
	if len(events) == 0 {
		return nil, ErrEmptyAppend
	}
	expected := expectedOrAny(opts.ExpectedRevision)
	log := c.log.WithFields(logrus.Fields{
		"stream.name":       streamName,
		"expected.revision": expected,
	})

	stream, err := c.streams.Append(ctx)
	if err != nil {
		return nil, err
	}
	if err := stream.Send(newAppendHeader(streamName, expected)); err != nil && err != io.EOF {
		return nil, err
	}
	for _, e := range events {
		if err := stream.Send(newProposedMessage(e)); err != nil {
			// io.EOF means the server ended the call; its status is returned by CloseAndRecv.
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}
	resp, err := stream.CloseAndRecv()
	if err != nil {
		appendsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result, err := resolveAppend(streamName, expected, resp)
	if err != nil {
		appendsTotal.WithLabelValues("conflict").Inc()
		log.WithError(err).Debug("Append rejected.")
		return nil, err
	}
	appendsTotal.WithLabelValues("success").Inc()
	log.WithField("revision", result.NextExpectedRevision).Debugf("Appended %d events.", len(events))
	return result, nil
}

// resolveAppend turns an append response into a result or into the conflict error matching the revision the
// caller expected.
func resolveAppend(streamName string, expected ExpectedRevision, resp *wire.AppendResp) (*AppendResult, error) {
	switch {
	case resp.Success != nil:
		if resp.Success.CurrentRevision == nil {
			return nil, protocolError("append", "success without a current revision")
		}
		result := &AppendResult{
			Success:              true,
			NextExpectedRevision: StreamRevision(*resp.Success.CurrentRevision),
		}
		if pos := resp.Success.Position; pos != nil {
			result.Position = &AllPosition{Commit: pos.CommitPosition, Prepare: pos.PreparePosition}
		}
		return result, nil
	case resp.WrongExpectedVersion != nil:
		return nil, resolveConflict(streamName, expected, resp.WrongExpectedVersion)
	}
	return nil, protocolError("append", "response is neither success nor wrong expected version")
}

func resolveConflict(streamName string, expected ExpectedRevision, wev *wire.WrongExpectedVersion) error {
	err := &WrongExpectedRevisionError{
		StreamName: streamName,
		Expected:   expected,
	}
	if rev := wev.Current(); rev != nil {
		current := StreamRevision(*rev)
		err.Current = &current
	}

	switch expected.(type) {
	case NoStream:
		err.Kind = ErrStreamAlreadyExists
	default:
		// StreamExists, a concrete revision and Any all conflict on a missing stream the same way.
		if err.Current == nil {
			err.Kind = ErrStreamNotFound
		} else {
			err.Kind = ErrRevisionMismatch
		}
	}
	return err
}
