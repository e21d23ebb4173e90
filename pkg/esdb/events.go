package esdb

import (
	"time"

	uuid "github.com/satori/go.uuid"
)

type ContentType string

const (
	ContentTypeJSON   ContentType = "application/json"
	ContentTypeBinary ContentType = "application/octet-stream"
)

// EventData is an event proposed for appending.
type EventData struct {
	// ID identifies the event. A new one is generated on append when it is nil.
	ID          uuid.UUID
	Type        string
	ContentType ContentType
	Data        []byte
	Metadata    []byte
}

// NewJSONEvent returns an event carrying already-serialized JSON data.
func NewJSONEvent(eventType string, data []byte) EventData {
	return EventData{
		ID:          uuid.NewV4(),
		Type:        eventType,
		ContentType: ContentTypeJSON,
		Data:        data,
	}
}

func NewBinaryEvent(eventType string, data []byte) EventData {
	return EventData{
		ID:          uuid.NewV4(),
		Type:        eventType,
		ContentType: ContentTypeBinary,
		Data:        data,
	}
}

// RecordedEvent is an event as stored by the server. Data is never interpreted, whatever the content type.
type RecordedEvent struct {
	StreamName  string
	ID          uuid.UUID
	Type        string
	ContentType ContentType
	Revision    StreamRevision
	Created     time.Time
	Position    AllPosition
	Data        []byte
	Metadata    []byte
}

func (e *RecordedEvent) IsJSON() bool {
	return e.ContentType == ContentTypeJSON
}

// ReadEvent is a delivered event. When links are resolved, Link holds the link event and Event its target.
type ReadEvent struct {
	Event          *RecordedEvent
	Link           *RecordedEvent
	CommitPosition *uint64
}

// OriginalEvent returns the link if present, else the event.
func (e *ReadEvent) OriginalEvent() *RecordedEvent {
	if e.Link != nil {
		return e.Link
	}
	return e.Event
}

func (*ReadEvent) isSubscriptionMessage() {}

// PersistentSubscriptionEvent is an event delivered by a persistent subscription.
type PersistentSubscriptionEvent struct {
	ReadEvent
	RetryCount int32
}

// OriginalID is the identity under which the event is acknowledged: the id of the link if present, else of the
// event.
func (e *PersistentSubscriptionEvent) OriginalID() (uuid.UUID, error) {
	original := e.OriginalEvent()
	if original == nil {
		return uuid.Nil, protocolError("ack", "event has neither a link nor a recorded event")
	}
	return original.ID, nil
}

// SubscriptionMessage is what a subscription delivers: a *ReadEvent, CaughtUp or FellBehind. Confirmations and
// checkpoints are part of the set but consumed by the subscription itself.
type SubscriptionMessage interface {
	isSubscriptionMessage()
}

type SubscriptionConfirmation struct {
	ID string
}

// Checkpoint marks a safe resume point on a filtered subscription to the global log.
type Checkpoint struct {
	Position AllPosition
}

// CaughtUp signals that the subscription reached the tail of the log.
type CaughtUp struct{}

// FellBehind signals that the subscription is no longer live and catches up from history.
type FellBehind struct{}

func (SubscriptionConfirmation) isSubscriptionMessage() {}
func (Checkpoint) isSubscriptionMessage()               {}
func (CaughtUp) isSubscriptionMessage()                 {}
func (FellBehind) isSubscriptionMessage()               {}
