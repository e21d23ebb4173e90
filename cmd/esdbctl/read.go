package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/fission/esdb-client/pkg/esdb"
)

var readFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "from, f",
		Value: "start",
		Usage: "Where to start: start, end, a revision, or C:<commit>/P:<prepare> for $all",
	},
	cli.BoolFlag{
		Name:  "resolve-links, r",
		Usage: "Resolve link events to their targets",
	},
	cli.StringFlag{
		Name:  "event-prefix",
		Usage: "Only events of $all whose type starts with one of these comma-separated prefixes",
	},
	cli.StringFlag{
		Name:  "stream-prefix",
		Usage: "Only events of $all whose stream starts with one of these comma-separated prefixes",
	},
	cli.BoolFlag{
		Name:  "exclude-system",
		Usage: "Skip system events of $all",
	},
	cli.BoolFlag{
		Name:  "data",
		Usage: "Print the data of JSON events",
	},
}

var cmdRead = cli.Command{
	Name:      "read",
	Usage:     "Read events of a stream, or of $all",
	ArgsUsage: "<stream|$all>",
	Flags: append([]cli.Flag{
		cli.BoolFlag{
			Name:  "backwards, b",
			Usage: "Read from the end towards the start",
		},
		cli.Uint64Flag{
			Name:  "count, n",
			Usage: "Maximum number of events (0 reads all)",
		},
	}, readFlags...),
	Action: commandContext(func(ctx Context) error {
		if ctx.NArg() < 1 {
			return cli.ShowCommandHelp(ctx.Context, "read")
		}
		streamName := ctx.Args().First()
		dir := esdb.Forwards
		if ctx.Bool("backwards") {
			dir = esdb.Backwards
		}

		client := getClient(ctx)
		defer client.Close()

		var it *esdb.ReadIterator
		if streamName == esdb.AllStreamName {
			from, err := parsePosition(ctx.String("from"))
			if err != nil {
				return err
			}
			it, err = client.ReadAll(ctx, esdb.ReadAllOptions{
				From:         from,
				Direction:    dir,
				MaxCount:     ctx.Uint64("count"),
				ResolveLinks: ctx.Bool("resolve-links"),
				Filter: parseFilter(ctx.String("event-prefix"), ctx.String("stream-prefix"),
					ctx.Bool("exclude-system")),
			})
			if err != nil {
				return err
			}
		} else {
			from, err := parseRevision(ctx.String("from"))
			if err != nil {
				return err
			}
			it, err = client.ReadStream(ctx, streamName, esdb.ReadStreamOptions{
				From:         from,
				Direction:    dir,
				MaxCount:     ctx.Uint64("count"),
				ResolveLinks: ctx.Bool("resolve-links"),
			})
			if err != nil {
				return err
			}
		}
		events, err := it.Collect()
		if err != nil {
			return err
		}

		var rows [][]string
		for _, ev := range events {
			rows = append(rows, eventRow(ev, ctx.Bool("data")))
		}
		table(os.Stdout, eventHeadings, rows)
		return nil
	}),
}
