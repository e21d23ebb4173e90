package main

import (
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/fission/esdb-client/pkg/relay"
)

var cmdRelay = cli.Command{
	Name:      "relay",
	Usage:     "Forward the events of persistent subscription groups to NATS JetStream",
	ArgsUsage: "<stream|$all>...",
	Description: "Joins the group on each stream and publishes every event to <subject-prefix>.<stream>, " +
		"acknowledging it once JetStream has stored it.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:   "nats",
			Value:  nats.DefaultURL,
			EnvVar: "ESDB_RELAY_NATS_URL",
			Usage:  "URL of the NATS server",
		},
		cli.StringFlag{
			Name:  "group, g",
			Value: "relay",
			Usage: "Persistent subscription group to join on each stream",
		},
		cli.StringFlag{
			Name:  "subject-prefix",
			Value: "esdb",
			Usage: "Prefix of the subjects events are published to",
		},
		cli.StringFlag{
			Name:  "jetstream",
			Value: "esdb",
			Usage: "JetStream stream capturing the subjects, created if missing (empty to skip)",
		},
		cli.IntFlag{
			Name:  "max-retries",
			Usage: "Consecutive failed joins before giving up (0 retries forever)",
		},
	},
	Action: commandContext(func(ctx Context) error {
		if ctx.NArg() < 1 {
			return cli.ShowCommandHelp(ctx.Context, "relay")
		}
		nc, err := nats.Connect(ctx.String("nats"), nats.Name("esdbctl-relay"))
		if err != nil {
			return errors.Wrapf(err, "failed to connect to NATS at %s", ctx.String("nats"))
		}
		defer nc.Drain()

		publisher, err := relay.NewJetStreamPublisher(nc)
		if err != nil {
			return err
		}
		prefix := ctx.String("subject-prefix")
		if name := ctx.String("jetstream"); name != "" {
			if err := publisher.EnsureStream(ctx, name, prefix); err != nil {
				return err
			}
		}

		client := getClient(ctx)
		defer client.Close()
		group := ctx.String("group")
		var relays []*relay.Relay
		for _, streamName := range ctx.Args() {
			r, err := relay.New(relay.StreamSubscriber(client, streamName, group), publisher, relay.Options{
				SubjectPrefix: prefix,
				MaxRetries:    ctx.Int("max-retries"),
				Logger: logrus.WithFields(logrus.Fields{
					"stream.name": streamName,
					"group.name":  group,
				}),
			})
			if err != nil {
				return err
			}
			relays = append(relays, r)
		}
		logrus.Infof("Relaying %d stream(s) to %s.", len(relays), ctx.String("nats"))
		return relay.RunAll(ctx, relays...)
	}),
}
