package esdb

import (
	"context"
	"time"

	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	"github.com/sirupsen/logrus"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

type ConsumerStrategy string

const (
	DispatchToSingle ConsumerStrategy = "DispatchToSingle"
	RoundRobin       ConsumerStrategy = "RoundRobin"
	Pinned           ConsumerStrategy = "Pinned"
)

func (s ConsumerStrategy) wire() wire.ConsumerStrategy {
	switch s {
	case DispatchToSingle:
		return wire.DispatchToSingle
	case Pinned:
		return wire.Pinned
	default:
		return wire.RoundRobin
	}
}

// PersistentSubscriptionSettings configure a persistent subscription group.
type PersistentSubscriptionSettings struct {
	ResolveLinks       bool
	ExtraStatistics    bool
	MessageTimeout     time.Duration
	MaxRetryCount      int32
	CheckpointAfter    time.Duration
	MinCheckpointCount int32
	MaxCheckpointCount int32
	// MaxSubscriberCount of zero means unlimited.
	MaxSubscriberCount int32
	LiveBufferSize     int32
	ReadBatchSize      int32
	HistoryBufferSize  int32
	ConsumerStrategy   ConsumerStrategy
}

func DefaultPersistentSubscriptionSettings() PersistentSubscriptionSettings {
	return PersistentSubscriptionSettings{
		MessageTimeout:     30 * time.Second,
		MaxRetryCount:      10,
		CheckpointAfter:    2 * time.Second,
		MinCheckpointCount: 10,
		MaxCheckpointCount: 1000,
		MaxSubscriberCount: 0,
		LiveBufferSize:     500,
		ReadBatchSize:      20,
		HistoryBufferSize:  500,
		ConsumerStrategy:   RoundRobin,
	}
}

type PersistentStreamSubscriptionOptions struct {
	// From is where the group starts reading the stream. Nil means Start.
	From RevisionSelector
	// Settings of the group. Nil means DefaultPersistentSubscriptionSettings.
	Settings *PersistentSubscriptionSettings
}

type PersistentAllSubscriptionOptions struct {
	From               PositionSelector
	Filter             Filter
	MaxSearchWindow    *uint32
	CheckpointInterval uint32
	Settings           *PersistentSubscriptionSettings
}

// PersistentSubscriptionInfo describes a persistent subscription group as reported by the server.
type PersistentSubscriptionInfo struct {
	EventSource                   string
	GroupName                     string
	Status                        string
	LastKnownEventPosition        string
	LastCheckpointedEventPosition string
	StartFrom                     string
	TotalInFlightMessages         int32
	OutstandingMessagesCount      int32
	ParkedMessageCount            int64
	ConsumerStrategy              string
	MaxSubscriberCount            int32
}

func (c *Client) CreatePersistentSubscriptionToStream(ctx context.Context, streamName, group string,
	opts PersistentStreamSubscriptionOptions) error {
	req := &wire.CreateReq{Options: c.streamGroupOptions(streamName, group, opts.From, opts.Settings)}
	if _, err := c.persistent.Create(ctx, req); err != nil {
		return persistentError(err, group, streamName)
	}
	c.adminLog(streamName, group).Info("Created persistent subscription.")
	return nil
}

func (c *Client) CreatePersistentSubscriptionToAll(ctx context.Context, group string,
	opts PersistentAllSubscriptionOptions) error {
	options := c.allGroupOptions(group, opts.From, opts.Settings)
	options.All.Filter, options.All.NoFilter = compileFilter(opts.Filter, opts.MaxSearchWindow, opts.CheckpointInterval)
	if _, err := c.persistent.Create(ctx, &wire.CreateReq{Options: options}); err != nil {
		return persistentError(err, group, AllStreamName)
	}
	c.adminLog(AllStreamName, group).Info("Created persistent subscription.")
	return nil
}

func (c *Client) UpdatePersistentSubscriptionToStream(ctx context.Context, streamName, group string,
	opts PersistentStreamSubscriptionOptions) error {
	req := &wire.UpdateReq{Options: c.streamGroupOptions(streamName, group, opts.From, opts.Settings)}
	if _, err := c.persistent.Update(ctx, req); err != nil {
		return persistentError(err, group, streamName)
	}
	c.adminLog(streamName, group).Info("Updated persistent subscription.")
	return nil
}

// UpdatePersistentSubscriptionToAll updates the settings and start of a group on the global log. The filter of a
// group cannot be changed.
func (c *Client) UpdatePersistentSubscriptionToAll(ctx context.Context, group string,
	opts PersistentAllSubscriptionOptions) error {
	req := &wire.UpdateReq{Options: c.allGroupOptions(group, opts.From, opts.Settings)}
	if _, err := c.persistent.Update(ctx, req); err != nil {
		return persistentError(err, group, AllStreamName)
	}
	c.adminLog(AllStreamName, group).Info("Updated persistent subscription.")
	return nil
}

func (c *Client) DeletePersistentSubscriptionToStream(ctx context.Context, streamName, group string) error {
	req := &wire.DeleteReq{Options: &wire.DeleteReqOptions{
		StreamIdentifier: wire.NewStreamIdentifier(streamName),
		GroupName:        group,
	}}
	if _, err := c.persistent.Delete(ctx, req); err != nil {
		return persistentError(err, group, streamName)
	}
	c.adminLog(streamName, group).Info("Deleted persistent subscription.")
	return nil
}

func (c *Client) DeletePersistentSubscriptionToAll(ctx context.Context, group string) error {
	req := &wire.DeleteReq{Options: &wire.DeleteReqOptions{
		All:       &wire.Empty{},
		GroupName: group,
	}}
	if _, err := c.persistent.Delete(ctx, req); err != nil {
		return persistentError(err, group, AllStreamName)
	}
	c.adminLog(AllStreamName, group).Info("Deleted persistent subscription.")
	return nil
}

// GetPersistentSubscriptionInfo describes a group. Groups on the global log are addressed with AllStreamName.
func (c *Client) GetPersistentSubscriptionInfo(ctx context.Context, streamName,
	group string) (*PersistentSubscriptionInfo, error) {
	opts := &wire.GetInfoReqOptions{GroupName: group}
	if streamName == AllStreamName {
		opts.All = &wire.Empty{}
	} else {
		opts.StreamIdentifier = wire.NewStreamIdentifier(streamName)
	}
	resp, err := c.persistent.GetInfo(ctx, &wire.GetInfoReq{Options: opts},
		grpc_retry.WithMax(c.config.UnaryMaxRetries))
	if err != nil {
		return nil, persistentError(err, group, streamName)
	}
	info := resp.SubscriptionInfo
	if info == nil {
		return nil, protocolError("get info", "response without subscription info")
	}
	return &PersistentSubscriptionInfo{
		EventSource:                   info.EventSource,
		GroupName:                     info.GroupName,
		Status:                        info.Status,
		LastKnownEventPosition:        info.LastKnownEventPosition,
		LastCheckpointedEventPosition: info.LastCheckpointedEventPosition,
		StartFrom:                     info.StartFrom,
		TotalInFlightMessages:         info.TotalInFlightMessages,
		OutstandingMessagesCount:      info.OutstandingMessagesCount,
		ParkedMessageCount:            info.ParkedMessageCount,
		ConsumerStrategy:              info.NamedConsumerStrategy,
		MaxSubscriberCount:            info.MaxSubscriberCount,
	}, nil
}

func (c *Client) adminLog(streamName, group string) *logrus.Entry {
	return c.log.WithFields(logrus.Fields{
		"stream.name": streamName,
		"group.name":  group,
	})
}

func (c *Client) streamGroupOptions(streamName, group string, from RevisionSelector,
	settings *PersistentSubscriptionSettings) *wire.GroupOptions {
	rev, start, end := revisionOptions(from)
	return &wire.GroupOptions{
		Stream: &wire.GroupStreamOptions{
			StreamIdentifier: wire.NewStreamIdentifier(streamName),
			Revision:         rev,
			Start:            start,
			End:              end,
		},
		StreamIdentifier: wire.NewStreamIdentifier(streamName),
		GroupName:        group,
		Settings:         c.wireSettings(settings),
	}
}

func (c *Client) allGroupOptions(group string, from PositionSelector,
	settings *PersistentSubscriptionSettings) *wire.GroupOptions {
	pos, start, end := positionOptions(from)
	return &wire.GroupOptions{
		All: &wire.GroupAllOptions{
			Position: pos,
			Start:    start,
			End:      end,
		},
		GroupName: group,
		Settings:  c.wireSettings(settings),
	}
}

// wireSettings encodes durations in ticks and the strategy as an enum for servers that predate millisecond
// settings, and in milliseconds and by name otherwise.
func (c *Client) wireSettings(s *PersistentSubscriptionSettings) *wire.Settings {
	settings := DefaultPersistentSubscriptionSettings()
	if s != nil {
		settings = *s
	}
	out := &wire.Settings{
		ResolveLinks:          settings.ResolveLinks,
		ExtraStatistics:       settings.ExtraStatistics,
		MaxRetryCount:         settings.MaxRetryCount,
		MinCheckpointCount:    settings.MinCheckpointCount,
		MaxCheckpointCount:    settings.MaxCheckpointCount,
		MaxSubscriberCount:    settings.MaxSubscriberCount,
		LiveBufferSize:        settings.LiveBufferSize,
		ReadBatchSize:         settings.ReadBatchSize,
		HistoryBufferSize:     settings.HistoryBufferSize,
		NamedConsumerStrategy: settings.ConsumerStrategy.wire(),
	}
	if c.config.legacySettings() {
		timeout := durationToTicks(settings.MessageTimeout)
		checkpoint := durationToTicks(settings.CheckpointAfter)
		out.MessageTimeoutTicks = &timeout
		out.CheckpointAfterTicks = &checkpoint
	} else {
		out.MessageTimeoutMs = wire.Int32(int32(settings.MessageTimeout / time.Millisecond))
		out.CheckpointAfterMs = wire.Int32(int32(settings.CheckpointAfter / time.Millisecond))
		if settings.ConsumerStrategy != "" {
			out.ConsumerStrategy = string(settings.ConsumerStrategy)
		} else {
			out.ConsumerStrategy = string(RoundRobin)
		}
	}
	return out
}

func durationToTicks(d time.Duration) int64 {
	return int64(d / 100)
}
