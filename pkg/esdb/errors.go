package esdb

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrStreamNotFound                      = errors.New("stream not found")
	ErrStreamAlreadyExists                 = errors.New("stream already exists")
	ErrRevisionMismatch                    = errors.New("revision mismatch")
	ErrPersistentSubscriptionNotFound      = errors.New("persistent subscription not found")
	ErrPersistentSubscriptionAlreadyExists = errors.New("persistent subscription already exists")
	ErrPersistentSubscriptionDropped       = errors.New("persistent subscription dropped")
	ErrMaxSubscribersReached               = errors.New("maximum number of subscribers reached")
	ErrProtocolViolation                   = errors.New("protocol violation")
	ErrEmptyAppend                         = errors.New("append requires at least one event")
	ErrSubscriptionClosed                  = errors.New("subscription closed")

	// Done is returned by iterators when there are no more items.
	Done = errors.New("no more items in iterator")
)

// WrongExpectedRevisionError is returned by an append that failed its optimistic concurrency check. Its Kind is one
// of ErrStreamNotFound, ErrStreamAlreadyExists or ErrRevisionMismatch, and errors.Is matches it.
type WrongExpectedRevisionError struct {
	Kind       error
	StreamName string
	Expected   ExpectedRevision
	// Current is the revision the server reported, nil if the stream does not exist.
	Current *StreamRevision
}

func (e *WrongExpectedRevisionError) Error() string {
	current := "no stream"
	if e.Current != nil {
		current = e.Current.String()
	}
	return fmt.Sprintf("%v: stream %q, expected %v, current %s", e.Kind, e.StreamName, e.Expected, current)
}

func (e *WrongExpectedRevisionError) Unwrap() error {
	return e.Kind
}

// StreamNotFoundError terminates a read or a subscription on a stream that does not exist.
type StreamNotFoundError struct {
	StreamName string
}

func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("%v: %q", ErrStreamNotFound, e.StreamName)
}

func (e *StreamNotFoundError) Unwrap() error {
	return ErrStreamNotFound
}

// PersistentSubscriptionError is a transport failure of a persistent subscription call, classified by Kind.
type PersistentSubscriptionError struct {
	Kind       error
	Group      string
	StreamName string
	Cause      error
}

func (e *PersistentSubscriptionError) Error() string {
	msg := fmt.Sprintf("%v: group %q on %q", e.Kind, e.Group, e.StreamName)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PersistentSubscriptionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// ProtocolError reports a message that does not fit the protocol. It is never recoverable.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v in %s: %s", ErrProtocolViolation, e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocolViolation
}

func protocolError(op string, format string, args ...interface{}) error {
	return &ProtocolError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// persistentError classifies a transport error of a persistent subscription call. Errors without a matching
// category are returned unchanged.
func persistentError(err error, group, streamName string) error {
	if err == nil {
		return nil
	}
	var kind error
	switch {
	case err == io.EOF:
		kind = ErrPersistentSubscriptionDropped
	case status.Code(err) == codes.Canceled:
		kind = ErrPersistentSubscriptionDropped
	case status.Code(err) == codes.NotFound:
		kind = ErrPersistentSubscriptionNotFound
	case status.Code(err) == codes.AlreadyExists:
		kind = ErrPersistentSubscriptionAlreadyExists
	case status.Code(err) == codes.FailedPrecondition:
		kind = ErrMaxSubscribersReached
	default:
		return err
	}
	return &PersistentSubscriptionError{
		Kind:       kind,
		Group:      group,
		StreamName: streamName,
		Cause:      err,
	}
}
