package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/fission/esdb-client/pkg/esdb"
)

var settingsFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "from, f",
		Value: "start",
		Usage: "Where the group starts: start, end, a revision, or C:<commit>/P:<prepare> for $all",
	},
	cli.StringFlag{
		Name:  "strategy, s",
		Value: string(esdb.RoundRobin),
		Usage: "Consumer strategy: RoundRobin, DispatchToSingle or Pinned",
	},
	cli.IntFlag{
		Name:  "max-retries",
		Value: 10,
		Usage: "Retries of a nacked event before it is parked",
	},
	cli.IntFlag{
		Name:  "max-subscribers",
		Usage: "Maximum members of the group (0 is unlimited)",
	},
	cli.DurationFlag{
		Name:  "message-timeout",
		Value: 30 * time.Second,
		Usage: "Time after which an unacknowledged event is retried",
	},
	cli.BoolFlag{
		Name:  "resolve-links, r",
		Usage: "Resolve link events to their targets",
	},
}

var cmdPersistent = cli.Command{
	Name:    "persistent",
	Aliases: []string{"ps"},
	Usage:   "Manage and consume persistent subscription groups",
	Subcommands: []cli.Command{
		{
			Name:      "create",
			Usage:     "Create a group on a stream, or on $all",
			ArgsUsage: "<stream|$all> <group>",
			Flags:     settingsFlags,
			Action: commandContext(func(ctx Context) error {
				return upsertGroup(ctx, "create")
			}),
		},
		{
			Name:      "update",
			Usage:     "Change the settings of a group and restart it",
			ArgsUsage: "<stream|$all> <group>",
			Flags:     settingsFlags,
			Action: commandContext(func(ctx Context) error {
				return upsertGroup(ctx, "update")
			}),
		},
		{
			Name:      "delete",
			Usage:     "Delete a group and drop its members",
			ArgsUsage: "<stream|$all> <group>",
			Action: commandContext(func(ctx Context) error {
				streamName, group, err := groupArgs(ctx, "delete")
				if err != nil {
					return err
				}
				client := getClient(ctx)
				defer client.Close()
				if streamName == esdb.AllStreamName {
					return client.DeletePersistentSubscriptionToAll(ctx, group)
				}
				return client.DeletePersistentSubscriptionToStream(ctx, streamName, group)
			}),
		},
		{
			Name:      "info",
			Usage:     "Describe a group",
			ArgsUsage: "<stream|$all> <group>",
			Action: commandContext(func(ctx Context) error {
				streamName, group, err := groupArgs(ctx, "info")
				if err != nil {
					return err
				}
				client := getClient(ctx)
				defer client.Close()
				info, err := client.GetPersistentSubscriptionInfo(ctx, streamName, group)
				if err != nil {
					return err
				}
				table(os.Stdout, nil, [][]string{
					{"SOURCE", info.EventSource},
					{"GROUP", info.GroupName},
					{"STATUS", info.Status},
					{"STRATEGY", info.ConsumerStrategy},
					{"START", info.StartFrom},
					{"LAST KNOWN", info.LastKnownEventPosition},
					{"LAST CHECKPOINT", info.LastCheckpointedEventPosition},
					{"IN FLIGHT", strconv.Itoa(int(info.TotalInFlightMessages))},
					{"OUTSTANDING", strconv.Itoa(int(info.OutstandingMessagesCount))},
					{"PARKED", strconv.FormatInt(info.ParkedMessageCount, 10)},
					{"MAX SUBSCRIBERS", strconv.Itoa(int(info.MaxSubscriberCount))},
				})
				return nil
			}),
		},
		{
			Name:      "subscribe",
			Usage:     "Join a group and print its events until interrupted",
			ArgsUsage: "<stream|$all> <group>",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "settle",
					Value: "ack",
					Usage: "How to settle each event: ack, park, retry or skip",
				},
				cli.IntFlag{
					Name:  "buffer",
					Usage: "In-flight events requested from the server (0 uses the client config)",
				},
				cli.BoolFlag{
					Name:  "data",
					Usage: "Print the data of JSON events",
				},
			},
			Action: commandContext(consumeGroup),
		},
	},
}

func groupArgs(ctx Context, cmd string) (streamName, group string, err error) {
	if ctx.NArg() < 2 {
		return "", "", cli.NewExitError(fmt.Sprintf("usage: esdbctl persistent %s <stream|$all> <group>", cmd), 1)
	}
	return ctx.Args().Get(0), ctx.Args().Get(1), nil
}

func groupSettings(ctx Context) *esdb.PersistentSubscriptionSettings {
	settings := esdb.DefaultPersistentSubscriptionSettings()
	settings.ConsumerStrategy = esdb.ConsumerStrategy(ctx.String("strategy"))
	settings.MaxRetryCount = int32(ctx.Int("max-retries"))
	settings.MaxSubscriberCount = int32(ctx.Int("max-subscribers"))
	settings.MessageTimeout = ctx.Duration("message-timeout")
	settings.ResolveLinks = ctx.Bool("resolve-links")
	return &settings
}

func upsertGroup(ctx Context, cmd string) error {
	streamName, group, err := groupArgs(ctx, cmd)
	if err != nil {
		return err
	}
	client := getClient(ctx)
	defer client.Close()

	if streamName == esdb.AllStreamName {
		from, err := parsePosition(ctx.String("from"))
		if err != nil {
			return err
		}
		opts := esdb.PersistentAllSubscriptionOptions{From: from, Settings: groupSettings(ctx)}
		if cmd == "update" {
			return client.UpdatePersistentSubscriptionToAll(ctx, group, opts)
		}
		return client.CreatePersistentSubscriptionToAll(ctx, group, opts)
	}

	from, err := parseRevision(ctx.String("from"))
	if err != nil {
		return err
	}
	opts := esdb.PersistentStreamSubscriptionOptions{From: from, Settings: groupSettings(ctx)}
	if cmd == "update" {
		return client.UpdatePersistentSubscriptionToStream(ctx, streamName, group, opts)
	}
	return client.CreatePersistentSubscriptionToStream(ctx, streamName, group, opts)
}

func parseSettle(s string) (esdb.NackAction, bool, error) {
	switch s {
	case "ack":
		return esdb.NackUnknown, true, nil
	case "park":
		return esdb.NackPark, false, nil
	case "retry":
		return esdb.NackRetry, false, nil
	case "skip":
		return esdb.NackSkip, false, nil
	}
	return esdb.NackUnknown, false, errors.Errorf("unknown settle mode %q", s)
}

func consumeGroup(ctx Context) error {
	streamName, group, err := groupArgs(ctx, "subscribe")
	if err != nil {
		return err
	}
	action, ack, err := parseSettle(ctx.String("settle"))
	if err != nil {
		return err
	}

	client := getClient(ctx)
	defer client.Close()
	opts := esdb.SubscribeToPersistentSubscriptionOptions{BufferSize: int32(ctx.Int("buffer"))}
	var sub *esdb.PersistentSubscription
	if streamName == esdb.AllStreamName {
		sub, err = client.SubscribeToPersistentSubscriptionToAll(ctx, group, opts)
	} else {
		sub, err = client.SubscribeToPersistentSubscriptionToStream(ctx, streamName, group, opts)
	}
	if err != nil {
		return err
	}
	defer sub.Close()
	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	fmt.Printf("Joined %s of %s (%s)\n", group, streamName, sub.ID())
	for {
		ev, err := sub.Next()
		if err != nil {
			if errors.Is(err, esdb.ErrSubscriptionClosed) {
				return nil
			}
			return err
		}
		line := subscriptionLine(&ev.ReadEvent, ctx.Bool("data"))
		if ev.RetryCount > 0 {
			line = fmt.Sprintf("%s (retry %d)", line, ev.RetryCount)
		}
		fmt.Println(line)
		if ack {
			err = sub.Ack(ctx, ev)
		} else {
			err = sub.Nack(ctx, action, "nacked by esdbctl", ev)
		}
		if err != nil {
			return err
		}
	}
}
