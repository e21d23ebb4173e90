package wire

type ReadDirection int32

const (
	Forwards ReadDirection = iota
	Backwards
)

type ReadReq struct {
	Options *ReadReqOptions
}

func (m *ReadReq) AppendWire(b []byte) []byte {
	return appendMessage(b, 1, m.Options)
}

func (m *ReadReq) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		if f.num == 1 {
			m.Options, err = sub[ReadReqOptions](f)
		}
		return err
	})
}

type ReadReqOptions struct {
	// oneof stream_option
	Stream *ReadStreamOptions
	All    *ReadAllOptions

	ReadDirection ReadDirection
	ResolveLinks  bool

	// oneof count_option
	Count        *uint64
	Subscription *Empty

	// oneof filter_option
	Filter   *FilterOptions
	NoFilter *Empty

	UUIDOption *UUIDOption
}

func (m *ReadReqOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Stream)
	b = appendMessage(b, 2, m.All)
	b = appendVarint(b, 3, uint64(m.ReadDirection))
	b = appendBool(b, 4, m.ResolveLinks)
	b = appendOptionalVarint(b, 5, m.Count)
	b = appendMessage(b, 6, m.Subscription)
	b = appendMessage(b, 7, m.Filter)
	b = appendMessage(b, 8, m.NoFilter)
	return appendMessage(b, 9, m.UUIDOption)
}

func (m *ReadReqOptions) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Stream, err = sub[ReadStreamOptions](f)
		case 2:
			m.All, err = sub[ReadAllOptions](f)
		case 3:
			m.ReadDirection = ReadDirection(f.int32())
		case 4:
			m.ResolveLinks = f.bool()
		case 5:
			m.Count = f.uint64()
		case 6:
			m.Subscription, err = sub[Empty](f)
		case 7:
			m.Filter, err = sub[FilterOptions](f)
		case 8:
			m.NoFilter, err = sub[Empty](f)
		case 9:
			m.UUIDOption, err = sub[UUIDOption](f)
		}
		return err
	})
}

type ReadStreamOptions struct {
	StreamIdentifier *StreamIdentifier

	// oneof revision_option
	Revision *uint64
	Start    *Empty
	End      *Empty
}

func (m *ReadStreamOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.StreamIdentifier)
	b = appendOptionalVarint(b, 2, m.Revision)
	b = appendMessage(b, 3, m.Start)
	return appendMessage(b, 4, m.End)
}

func (m *ReadStreamOptions) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.StreamIdentifier, err = sub[StreamIdentifier](f)
		case 2:
			m.Revision = f.uint64()
		case 3:
			m.Start, err = sub[Empty](f)
		case 4:
			m.End, err = sub[Empty](f)
		}
		return err
	})
}

type ReadAllOptions struct {
	// oneof all_option
	Position *Position
	Start    *Empty
	End      *Empty
}

func (m *ReadAllOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Position)
	b = appendMessage(b, 2, m.Start)
	return appendMessage(b, 3, m.End)
}

func (m *ReadAllOptions) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Position, err = sub[Position](f)
		case 2:
			m.Start, err = sub[Empty](f)
		case 3:
			m.End, err = sub[Empty](f)
		}
		return err
	})
}

type FilterOptions struct {
	// oneof filter
	StreamIdentifier *FilterExpression
	EventType        *FilterExpression

	// oneof window
	Max   *uint32
	Count *Empty

	CheckpointIntervalMultiplier uint32
}

func (m *FilterOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.StreamIdentifier)
	b = appendMessage(b, 2, m.EventType)
	if m.Max != nil {
		b = appendOptionalVarint(b, 3, Uint64(uint64(*m.Max)))
	}
	b = appendMessage(b, 4, m.Count)
	return appendVarint(b, 5, uint64(m.CheckpointIntervalMultiplier))
}

func (m *FilterOptions) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.StreamIdentifier, err = sub[FilterExpression](f)
		case 2:
			m.EventType, err = sub[FilterExpression](f)
		case 3:
			v := uint32(f.varint)
			m.Max = &v
		case 4:
			m.Count, err = sub[Empty](f)
		case 5:
			m.CheckpointIntervalMultiplier = uint32(f.varint)
		}
		return err
	})
}

type FilterExpression struct {
	Regex  string
	Prefix []string
}

func (m *FilterExpression) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.Regex)
	for _, p := range m.Prefix {
		b = appendString(b, 2, p)
	}
	return b
}

func (m *FilterExpression) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) error {
		switch f.num {
		case 1:
			m.Regex = f.string()
		case 2:
			m.Prefix = append(m.Prefix, f.string())
		}
		return nil
	})
}

type ReadResp struct {
	// oneof content
	Event                 *ReadEvent
	Confirmation          *SubscriptionConfirmation
	Checkpoint            *Position
	StreamNotFound        *StreamNotFound
	FirstStreamPosition   *uint64
	LastStreamPosition    *uint64
	LastAllStreamPosition *Position
	CaughtUp              *Empty
	FellBehind            *Empty
}

func (m *ReadResp) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Event)
	b = appendMessage(b, 2, m.Confirmation)
	b = appendMessage(b, 3, m.Checkpoint)
	b = appendMessage(b, 4, m.StreamNotFound)
	b = appendOptionalVarint(b, 5, m.FirstStreamPosition)
	b = appendOptionalVarint(b, 6, m.LastStreamPosition)
	b = appendMessage(b, 7, m.LastAllStreamPosition)
	b = appendMessage(b, 8, m.CaughtUp)
	return appendMessage(b, 9, m.FellBehind)
}

func (m *ReadResp) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Event, err = sub[ReadEvent](f)
		case 2:
			m.Confirmation, err = sub[SubscriptionConfirmation](f)
		case 3:
			m.Checkpoint, err = sub[Position](f)
		case 4:
			m.StreamNotFound, err = sub[StreamNotFound](f)
		case 5:
			m.FirstStreamPosition = f.uint64()
		case 6:
			m.LastStreamPosition = f.uint64()
		case 7:
			m.LastAllStreamPosition, err = sub[Position](f)
		case 8:
			m.CaughtUp, err = sub[Empty](f)
		case 9:
			m.FellBehind, err = sub[Empty](f)
		}
		return err
	})
}

// ReadEvent is an event as delivered by reads, subscriptions and persistent subscriptions. The retry count is only
// ever set by persistent subscriptions.
type ReadEvent struct {
	Event *RecordedEvent
	Link  *RecordedEvent

	// oneof position
	CommitPosition *uint64
	NoPosition     *Empty

	// oneof count
	RetryCount   *int32
	NoRetryCount *Empty
}

func (m *ReadEvent) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Event)
	b = appendMessage(b, 2, m.Link)
	b = appendOptionalVarint(b, 3, m.CommitPosition)
	b = appendMessage(b, 4, m.NoPosition)
	if m.RetryCount != nil {
		b = appendOptionalVarint(b, 5, Uint64(uint64(int64(*m.RetryCount))))
	}
	return appendMessage(b, 6, m.NoRetryCount)
}

func (m *ReadEvent) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Event, err = sub[RecordedEvent](f)
		case 2:
			m.Link, err = sub[RecordedEvent](f)
		case 3:
			m.CommitPosition = f.uint64()
		case 4:
			m.NoPosition, err = sub[Empty](f)
		case 5:
			m.RetryCount = Int32(f.int32())
		case 6:
			m.NoRetryCount, err = sub[Empty](f)
		}
		return err
	})
}

type RecordedEvent struct {
	ID               *UUID
	StreamIdentifier *StreamIdentifier
	StreamRevision   uint64
	PreparePosition  uint64
	CommitPosition   uint64
	Metadata         map[string]string
	CustomMetadata   []byte
	Data             []byte
}

func (m *RecordedEvent) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.ID)
	b = appendMessage(b, 2, m.StreamIdentifier)
	b = appendVarint(b, 3, m.StreamRevision)
	b = appendVarint(b, 4, m.PreparePosition)
	b = appendVarint(b, 5, m.CommitPosition)
	b = appendStringMap(b, 6, m.Metadata)
	b = appendBytes(b, 7, m.CustomMetadata)
	return appendBytes(b, 8, m.Data)
}

func (m *RecordedEvent) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.ID, err = sub[UUID](f)
		case 2:
			m.StreamIdentifier, err = sub[StreamIdentifier](f)
		case 3:
			m.StreamRevision = f.varint
		case 4:
			m.PreparePosition = f.varint
		case 5:
			m.CommitPosition = f.varint
		case 6:
			var k, v string
			k, v, err = decodeMapEntry(f)
			if m.Metadata == nil {
				m.Metadata = map[string]string{}
			}
			m.Metadata[k] = v
		case 7:
			m.CustomMetadata = f.bytes
		case 8:
			m.Data = f.bytes
		}
		return err
	})
}

type SubscriptionConfirmation struct {
	SubscriptionID string
}

func (m *SubscriptionConfirmation) AppendWire(b []byte) []byte {
	return appendString(b, 1, m.SubscriptionID)
}

func (m *SubscriptionConfirmation) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) error {
		if f.num == 1 {
			m.SubscriptionID = f.string()
		}
		return nil
	})
}

type StreamNotFound struct {
	StreamIdentifier *StreamIdentifier
}

func (m *StreamNotFound) AppendWire(b []byte) []byte {
	return appendMessage(b, 1, m.StreamIdentifier)
}

func (m *StreamNotFound) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		if f.num == 1 {
			m.StreamIdentifier, err = sub[StreamIdentifier](f)
		}
		return err
	})
}

type AppendReq struct {
	// oneof content
	Options         *AppendReqOptions
	ProposedMessage *ProposedMessage
}

func (m *AppendReq) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Options)
	return appendMessage(b, 2, m.ProposedMessage)
}

func (m *AppendReq) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Options, err = sub[AppendReqOptions](f)
		case 2:
			m.ProposedMessage, err = sub[ProposedMessage](f)
		}
		return err
	})
}

type AppendReqOptions struct {
	StreamIdentifier *StreamIdentifier

	// oneof expected_stream_revision
	Revision     *uint64
	NoStream     *Empty
	Any          *Empty
	StreamExists *Empty
}

func (m *AppendReqOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.StreamIdentifier)
	b = appendOptionalVarint(b, 2, m.Revision)
	b = appendMessage(b, 3, m.NoStream)
	b = appendMessage(b, 4, m.Any)
	return appendMessage(b, 5, m.StreamExists)
}

func (m *AppendReqOptions) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.StreamIdentifier, err = sub[StreamIdentifier](f)
		case 2:
			m.Revision = f.uint64()
		case 3:
			m.NoStream, err = sub[Empty](f)
		case 4:
			m.Any, err = sub[Empty](f)
		case 5:
			m.StreamExists, err = sub[Empty](f)
		}
		return err
	})
}

type ProposedMessage struct {
	ID             *UUID
	Metadata       map[string]string
	CustomMetadata []byte
	Data           []byte
}

func (m *ProposedMessage) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.ID)
	b = appendStringMap(b, 2, m.Metadata)
	b = appendBytes(b, 3, m.CustomMetadata)
	return appendBytes(b, 4, m.Data)
}

func (m *ProposedMessage) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.ID, err = sub[UUID](f)
		case 2:
			var k, v string
			k, v, err = decodeMapEntry(f)
			if m.Metadata == nil {
				m.Metadata = map[string]string{}
			}
			m.Metadata[k] = v
		case 3:
			m.CustomMetadata = f.bytes
		case 4:
			m.Data = f.bytes
		}
		return err
	})
}

type AppendResp struct {
	// oneof result
	Success              *AppendSuccess
	WrongExpectedVersion *WrongExpectedVersion
}

func (m *AppendResp) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Success)
	return appendMessage(b, 2, m.WrongExpectedVersion)
}

func (m *AppendResp) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Success, err = sub[AppendSuccess](f)
		case 2:
			m.WrongExpectedVersion, err = sub[WrongExpectedVersion](f)
		}
		return err
	})
}

type AppendSuccess struct {
	// oneof current_revision_option
	CurrentRevision *uint64
	NoStream        *Empty

	// oneof position_option
	Position   *Position
	NoPosition *Empty
}

func (m *AppendSuccess) AppendWire(b []byte) []byte {
	b = appendOptionalVarint(b, 1, m.CurrentRevision)
	b = appendMessage(b, 2, m.NoStream)
	b = appendMessage(b, 3, m.Position)
	return appendMessage(b, 4, m.NoPosition)
}

func (m *AppendSuccess) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.CurrentRevision = f.uint64()
		case 2:
			m.NoStream, err = sub[Empty](f)
		case 3:
			m.Position, err = sub[Position](f)
		case 4:
			m.NoPosition, err = sub[Empty](f)
		}
		return err
	})
}

type WrongExpectedVersion struct {
	// oneof current_revision_option_20_6_0, sent by servers before 20.6.1
	CurrentRevision2060 *uint64
	CurrentNoStream2060 *Empty

	// oneof current_revision_option
	CurrentRevision *uint64
	CurrentNoStream *Empty

	// oneof expected_revision_option
	ExpectedRevision     *uint64
	ExpectedAny          *Empty
	ExpectedStreamExists *Empty
	ExpectedNoStream     *Empty
}

// Current returns the current revision of the stream, or nil if it does not exist. The pre-20.6.1 fields are only
// consulted when neither current field is set.
func (m *WrongExpectedVersion) Current() *uint64 {
	if m.CurrentRevision != nil || m.CurrentNoStream != nil {
		return m.CurrentRevision
	}
	return m.CurrentRevision2060
}

func (m *WrongExpectedVersion) AppendWire(b []byte) []byte {
	b = appendOptionalVarint(b, 1, m.CurrentRevision2060)
	b = appendMessage(b, 2, m.CurrentNoStream2060)
	b = appendOptionalVarint(b, 6, m.CurrentRevision)
	b = appendMessage(b, 7, m.CurrentNoStream)
	b = appendOptionalVarint(b, 8, m.ExpectedRevision)
	b = appendMessage(b, 9, m.ExpectedAny)
	b = appendMessage(b, 10, m.ExpectedStreamExists)
	return appendMessage(b, 11, m.ExpectedNoStream)
}

func (m *WrongExpectedVersion) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.CurrentRevision2060 = f.uint64()
		case 2:
			m.CurrentNoStream2060, err = sub[Empty](f)
		case 6:
			m.CurrentRevision = f.uint64()
		case 7:
			m.CurrentNoStream, err = sub[Empty](f)
		case 8:
			m.ExpectedRevision = f.uint64()
		case 9:
			m.ExpectedAny, err = sub[Empty](f)
		case 10:
			m.ExpectedStreamExists, err = sub[Empty](f)
		case 11:
			m.ExpectedNoStream, err = sub[Empty](f)
		}
		return err
	})
}
