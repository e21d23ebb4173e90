package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/fission/esdb-client/pkg/esdb"
)

var cmdSubscribe = cli.Command{
	Name:      "subscribe",
	Aliases:   []string{"sub"},
	Usage:     "Follow a stream, or $all, until interrupted",
	ArgsUsage: "<stream|$all>",
	Flags: append([]cli.Flag{
		cli.UintFlag{
			Name:  "checkpoint-interval",
			Value: 1,
			Usage: "Multiplier of the search window between checkpoints of a filtered subscription",
		},
	}, readFlags...),
	Action: commandContext(func(ctx Context) error {
		if ctx.NArg() < 1 {
			return cli.ShowCommandHelp(ctx.Context, "subscribe")
		}
		streamName := ctx.Args().First()

		client := getClient(ctx)
		defer client.Close()

		var sub *esdb.Subscription
		if streamName == esdb.AllStreamName {
			from, err := parsePosition(ctx.String("from"))
			if err != nil {
				return err
			}
			sub, err = client.SubscribeToAll(ctx, esdb.SubscribeToAllOptions{
				From:         from,
				ResolveLinks: ctx.Bool("resolve-links"),
				Filter: parseFilter(ctx.String("event-prefix"), ctx.String("stream-prefix"),
					ctx.Bool("exclude-system")),
				CheckpointInterval: uint32(ctx.Uint("checkpoint-interval")),
			})
			if err != nil {
				return err
			}
		} else {
			from, err := parseRevision(ctx.String("from"))
			if err != nil {
				return err
			}
			sub, err = client.SubscribeToStream(ctx, streamName, esdb.SubscribeToStreamOptions{
				From:         from,
				ResolveLinks: ctx.Bool("resolve-links"),
			})
			if err != nil {
				return err
			}
		}
		defer sub.Close()
		go func() {
			<-ctx.Done()
			sub.Close()
		}()

		fmt.Printf("Subscribed to %s (%s)\n", streamName, sub.ID())
		for {
			msg, err := sub.Recv()
			if err != nil {
				if errors.Is(err, esdb.ErrSubscriptionClosed) || errors.Is(err, esdb.Done) {
					return nil
				}
				return err
			}
			fmt.Println(subscriptionLine(msg, ctx.Bool("data")))
		}
	}),
}
