package wire

type NackAction int32

const (
	NackUnknown NackAction = iota
	NackPark
	NackRetry
	NackSkip
	NackStop
)

type ConsumerStrategy int32

const (
	DispatchToSingle ConsumerStrategy = iota
	RoundRobin
	Pinned
)

type PersistentReadReq struct {
	// oneof content
	Options *PersistentReadReqOptions
	Ack     *Ack
	Nack    *Nack
}

func (m *PersistentReadReq) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Options)
	b = appendMessage(b, 2, m.Ack)
	return appendMessage(b, 3, m.Nack)
}

func (m *PersistentReadReq) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Options, err = sub[PersistentReadReqOptions](f)
		case 2:
			m.Ack, err = sub[Ack](f)
		case 3:
			m.Nack, err = sub[Nack](f)
		}
		return err
	})
}

type PersistentReadReqOptions struct {
	// oneof stream_option
	StreamIdentifier *StreamIdentifier
	All              *Empty

	GroupName  string
	BufferSize int32
	UUIDOption *UUIDOption
}

func (m *PersistentReadReqOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.StreamIdentifier)
	b = appendString(b, 2, m.GroupName)
	b = appendInt32(b, 3, m.BufferSize)
	b = appendMessage(b, 4, m.UUIDOption)
	return appendMessage(b, 5, m.All)
}

func (m *PersistentReadReqOptions) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.StreamIdentifier, err = sub[StreamIdentifier](f)
		case 2:
			m.GroupName = f.string()
		case 3:
			m.BufferSize = f.int32()
		case 4:
			m.UUIDOption, err = sub[UUIDOption](f)
		case 5:
			m.All, err = sub[Empty](f)
		}
		return err
	})
}

type Ack struct {
	ID  []byte
	IDs []*UUID
}

func (m *Ack) AppendWire(b []byte) []byte {
	b = appendBytes(b, 1, m.ID)
	for _, id := range m.IDs {
		b = appendMessage(b, 2, id)
	}
	return b
}

func (m *Ack) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) error {
		switch f.num {
		case 1:
			m.ID = f.bytes
		case 2:
			id, err := sub[UUID](f)
			if err != nil {
				return err
			}
			m.IDs = append(m.IDs, id)
		}
		return nil
	})
}

type Nack struct {
	ID     []byte
	IDs    []*UUID
	Action NackAction
	Reason string
}

func (m *Nack) AppendWire(b []byte) []byte {
	b = appendBytes(b, 1, m.ID)
	for _, id := range m.IDs {
		b = appendMessage(b, 2, id)
	}
	b = appendInt32(b, 3, int32(m.Action))
	return appendString(b, 4, m.Reason)
}

func (m *Nack) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) error {
		switch f.num {
		case 1:
			m.ID = f.bytes
		case 2:
			id, err := sub[UUID](f)
			if err != nil {
				return err
			}
			m.IDs = append(m.IDs, id)
		case 3:
			m.Action = NackAction(f.int32())
		case 4:
			m.Reason = f.string()
		}
		return nil
	})
}

type PersistentReadResp struct {
	// oneof content
	Event                    *ReadEvent
	SubscriptionConfirmation *SubscriptionConfirmation
}

func (m *PersistentReadResp) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Event)
	return appendMessage(b, 2, m.SubscriptionConfirmation)
}

func (m *PersistentReadResp) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Event, err = sub[ReadEvent](f)
		case 2:
			m.SubscriptionConfirmation, err = sub[SubscriptionConfirmation](f)
		}
		return err
	})
}

// CreateReq creates a persistent subscription group.
type CreateReq struct {
	Options *GroupOptions
}

func (m *CreateReq) AppendWire(b []byte) []byte {
	return appendMessage(b, 1, m.Options)
}

func (m *CreateReq) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		if f.num == 1 {
			m.Options, err = sub[GroupOptions](f)
		}
		return err
	})
}

// UpdateReq shares its options with CreateReq; the server ignores the filter on update.
type UpdateReq struct {
	Options *GroupOptions
}

func (m *UpdateReq) AppendWire(b []byte) []byte {
	return appendMessage(b, 1, m.Options)
}

func (m *UpdateReq) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		if f.num == 1 {
			m.Options, err = sub[GroupOptions](f)
		}
		return err
	})
}

type GroupOptions struct {
	// oneof stream_option
	Stream *GroupStreamOptions
	All    *GroupAllOptions

	// StreamIdentifier is the legacy location of the stream name, still read by older servers.
	StreamIdentifier *StreamIdentifier
	GroupName        string
	Settings         *Settings
}

func (m *GroupOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.StreamIdentifier)
	b = appendString(b, 2, m.GroupName)
	b = appendMessage(b, 3, m.Settings)
	b = appendMessage(b, 4, m.Stream)
	return appendMessage(b, 5, m.All)
}

func (m *GroupOptions) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.StreamIdentifier, err = sub[StreamIdentifier](f)
		case 2:
			m.GroupName = f.string()
		case 3:
			m.Settings, err = sub[Settings](f)
		case 4:
			m.Stream, err = sub[GroupStreamOptions](f)
		case 5:
			m.All, err = sub[GroupAllOptions](f)
		}
		return err
	})
}

type GroupStreamOptions struct {
	StreamIdentifier *StreamIdentifier

	// oneof revision_option
	Revision *uint64
	Start    *Empty
	End      *Empty
}

func (m *GroupStreamOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.StreamIdentifier)
	b = appendOptionalVarint(b, 2, m.Revision)
	b = appendMessage(b, 3, m.Start)
	return appendMessage(b, 4, m.End)
}

func (m *GroupStreamOptions) UnmarshalWire(b []byte) error {
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

type GroupAllOptions struct {
	// oneof all_option
	Position *Position
	Start    *Empty
	End      *Empty

	// oneof filter_option
	Filter   *FilterOptions
	NoFilter *Empty
}

func (m *GroupAllOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Position)
	b = appendMessage(b, 2, m.Start)
	b = appendMessage(b, 3, m.End)
	b = appendMessage(b, 4, m.Filter)
	return appendMessage(b, 5, m.NoFilter)
}

func (m *GroupAllOptions) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Position, err = sub[Position](f)
		case 2:
			m.Start, err = sub[Empty](f)
		case 3:
			m.End, err = sub[Empty](f)
		case 4:
			m.Filter, err = sub[FilterOptions](f)
		case 5:
			m.NoFilter, err = sub[Empty](f)
		}
		return err
	})
}

// Settings of a persistent subscription group. Durations are carried either in ticks (100ns, servers before 21.x)
// or in milliseconds; the consumer strategy either as an enum or, on create, by name.
type Settings struct {
	ResolveLinks    bool
	Revision        uint64
	ExtraStatistics bool

	// oneof message_timeout
	MessageTimeoutTicks *int64
	MessageTimeoutMs    *int32

	MaxRetryCount int32

	// oneof checkpoint_after
	CheckpointAfterTicks *int64
	CheckpointAfterMs    *int32

	MinCheckpointCount    int32
	MaxCheckpointCount    int32
	MaxSubscriberCount    int32
	LiveBufferSize        int32
	ReadBatchSize         int32
	HistoryBufferSize     int32
	NamedConsumerStrategy ConsumerStrategy
	ConsumerStrategy      string
}

func (m *Settings) AppendWire(b []byte) []byte {
	b = appendBool(b, 1, m.ResolveLinks)
	b = appendVarint(b, 2, m.Revision)
	b = appendBool(b, 3, m.ExtraStatistics)
	if m.MessageTimeoutTicks != nil {
		b = appendOptionalVarint(b, 4, Uint64(uint64(*m.MessageTimeoutTicks)))
	}
	b = appendInt32(b, 5, m.MaxRetryCount)
	if m.CheckpointAfterTicks != nil {
		b = appendOptionalVarint(b, 6, Uint64(uint64(*m.CheckpointAfterTicks)))
	}
	b = appendInt32(b, 7, m.MinCheckpointCount)
	b = appendInt32(b, 8, m.MaxCheckpointCount)
	b = appendInt32(b, 9, m.MaxSubscriberCount)
	b = appendInt32(b, 10, m.LiveBufferSize)
	b = appendInt32(b, 11, m.ReadBatchSize)
	b = appendInt32(b, 12, m.HistoryBufferSize)
	b = appendInt32(b, 13, int32(m.NamedConsumerStrategy))
	if m.MessageTimeoutMs != nil {
		b = appendOptionalVarint(b, 14, Uint64(uint64(int64(*m.MessageTimeoutMs))))
	}
	if m.CheckpointAfterMs != nil {
		b = appendOptionalVarint(b, 15, Uint64(uint64(int64(*m.CheckpointAfterMs))))
	}
	return appendString(b, 16, m.ConsumerStrategy)
}

func (m *Settings) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) error {
		switch f.num {
		case 1:
			m.ResolveLinks = f.bool()
		case 2:
			m.Revision = f.varint
		case 3:
			m.ExtraStatistics = f.bool()
		case 4:
			v := int64(f.varint)
			m.MessageTimeoutTicks = &v
		case 5:
			m.MaxRetryCount = f.int32()
		case 6:
			v := int64(f.varint)
			m.CheckpointAfterTicks = &v
		case 7:
			m.MinCheckpointCount = f.int32()
		case 8:
			m.MaxCheckpointCount = f.int32()
		case 9:
			m.MaxSubscriberCount = f.int32()
		case 10:
			m.LiveBufferSize = f.int32()
		case 11:
			m.ReadBatchSize = f.int32()
		case 12:
			m.HistoryBufferSize = f.int32()
		case 13:
			m.NamedConsumerStrategy = ConsumerStrategy(f.int32())
		case 14:
			m.MessageTimeoutMs = Int32(f.int32())
		case 15:
			m.CheckpointAfterMs = Int32(f.int32())
		case 16:
			m.ConsumerStrategy = f.string()
		}
		return nil
	})
}

type DeleteReq struct {
	Options *DeleteReqOptions
}

func (m *DeleteReq) AppendWire(b []byte) []byte {
	return appendMessage(b, 1, m.Options)
}

func (m *DeleteReq) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		if f.num == 1 {
			m.Options, err = sub[DeleteReqOptions](f)
		}
		return err
	})
}

type DeleteReqOptions struct {
	// oneof stream_option
	StreamIdentifier *StreamIdentifier
	All              *Empty

	GroupName string
}

func (m *DeleteReqOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.StreamIdentifier)
	b = appendString(b, 2, m.GroupName)
	return appendMessage(b, 3, m.All)
}

func (m *DeleteReqOptions) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.StreamIdentifier, err = sub[StreamIdentifier](f)
		case 2:
			m.GroupName = f.string()
		case 3:
			m.All, err = sub[Empty](f)
		}
		return err
	})
}

type GetInfoReq struct {
	Options *GetInfoReqOptions
}

func (m *GetInfoReq) AppendWire(b []byte) []byte {
	return appendMessage(b, 1, m.Options)
}

func (m *GetInfoReq) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		if f.num == 1 {
			m.Options, err = sub[GetInfoReqOptions](f)
		}
		return err
	})
}

type GetInfoReqOptions struct {
	// oneof stream_option
	StreamIdentifier *StreamIdentifier
	All              *Empty

	GroupName string
}

func (m *GetInfoReqOptions) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.StreamIdentifier)
	b = appendMessage(b, 2, m.All)
	return appendString(b, 3, m.GroupName)
}

func (m *GetInfoReqOptions) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.StreamIdentifier, err = sub[StreamIdentifier](f)
		case 2:
			m.All, err = sub[Empty](f)
		case 3:
			m.GroupName = f.string()
		}
		return err
	})
}

type GetInfoResp struct {
	SubscriptionInfo *SubscriptionInfo
}

func (m *GetInfoResp) AppendWire(b []byte) []byte {
	return appendMessage(b, 1, m.SubscriptionInfo)
}

func (m *GetInfoResp) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		if f.num == 1 {
			m.SubscriptionInfo, err = sub[SubscriptionInfo](f)
		}
		return err
	})
}

// SubscriptionInfo carries the subset of group statistics the client exposes.
type SubscriptionInfo struct {
	EventSource                   string
	GroupName                     string
	Status                        string
	TotalItems                    int64
	LastCheckpointedEventPosition string
	LastKnownEventPosition        string
	ResolveLinkTos                bool
	StartFrom                     string
	MessageTimeoutMilliseconds    int32
	MaxRetryCount                 int32
	TotalInFlightMessages         int32
	OutstandingMessagesCount      int32
	NamedConsumerStrategy         string
	MaxSubscriberCount            int32
	ParkedMessageCount            int64
}

func (m *SubscriptionInfo) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.EventSource)
	b = appendString(b, 2, m.GroupName)
	b = appendString(b, 3, m.Status)
	b = appendVarint(b, 6, uint64(m.TotalItems))
	b = appendString(b, 8, m.LastCheckpointedEventPosition)
	b = appendString(b, 9, m.LastKnownEventPosition)
	b = appendBool(b, 10, m.ResolveLinkTos)
	b = appendString(b, 11, m.StartFrom)
	b = appendInt32(b, 12, m.MessageTimeoutMilliseconds)
	b = appendInt32(b, 14, m.MaxRetryCount)
	b = appendInt32(b, 24, m.TotalInFlightMessages)
	b = appendInt32(b, 25, m.OutstandingMessagesCount)
	b = appendString(b, 26, m.NamedConsumerStrategy)
	b = appendInt32(b, 27, m.MaxSubscriberCount)
	return appendVarint(b, 28, uint64(m.ParkedMessageCount))
}

func (m *SubscriptionInfo) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) error {
		switch f.num {
		case 1:
			m.EventSource = f.string()
		case 2:
			m.GroupName = f.string()
		case 3:
			m.Status = f.string()
		case 6:
			m.TotalItems = int64(f.varint)
		case 8:
			m.LastCheckpointedEventPosition = f.string()
		case 9:
			m.LastKnownEventPosition = f.string()
		case 10:
			m.ResolveLinkTos = f.bool()
		case 11:
			m.StartFrom = f.string()
		case 12:
			m.MessageTimeoutMilliseconds = f.int32()
		case 14:
			m.MaxRetryCount = f.int32()
		case 24:
			m.TotalInFlightMessages = f.int32()
		case 25:
			m.OutstandingMessagesCount = f.int32()
		case 26:
			m.NamedConsumerStrategy = f.string()
		case 27:
			m.MaxSubscriberCount = f.int32()
		case 28:
			m.ParkedMessageCount = int64(f.varint)
		}
		return nil
	})
}
