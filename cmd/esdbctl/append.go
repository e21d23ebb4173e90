package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/fission/esdb-client/pkg/esdb"
)

var cmdAppend = cli.Command{
	Name:      "append",
	Usage:     "Append an event to a stream",
	ArgsUsage: "<stream> <type> [data]",
	Description: "Appends a single event. The data is read from stdin when it is not provided as an argument, " +
		"or when it is '-'.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "expected, e",
			Value: "any",
			Usage: "Expected revision of the stream: any, no-stream, exists or a revision",
		},
		cli.BoolFlag{
			Name:  "binary",
			Usage: "Mark the data as binary instead of JSON",
		},
		cli.StringFlag{
			Name:  "metadata, m",
			Usage: "Custom metadata of the event",
		},
	},
	Action: commandContext(func(ctx Context) error {
		if ctx.NArg() < 2 {
			return cli.ShowCommandHelp(ctx.Context, "append")
		}
		streamName, eventType := ctx.Args().Get(0), ctx.Args().Get(1)
		var data []byte
		if arg := ctx.Args().Get(2); arg != "" && arg != "-" {
			data = []byte(arg)
		} else {
			bs, err := ioutil.ReadAll(os.Stdin)
			if err != nil {
				return errors.Wrap(err, "failed to read event data")
			}
			data = bs
		}
		expected, err := parseExpected(ctx.String("expected"))
		if err != nil {
			return err
		}

		event := esdb.NewJSONEvent(eventType, data)
		if ctx.Bool("binary") {
			event = esdb.NewBinaryEvent(eventType, data)
		}
		if md := ctx.String("metadata"); md != "" {
			event.Metadata = []byte(md)
		}

		client := getClient(ctx)
		defer client.Close()
		result, err := client.AppendToStream(ctx, streamName, esdb.AppendOptions{ExpectedRevision: expected}, event)
		if err != nil {
			var conflict *esdb.WrongExpectedRevisionError
			if errors.As(err, &conflict) {
				fmt.Println(color.HiRedString(conflict.Error()))
				os.Exit(2)
			}
			return err
		}
		pos := "-"
		if result.Position != nil {
			pos = result.Position.String()
		}
		fmt.Printf("%s %s@%d (position %s)\n", event.ID, streamName, result.NextExpectedRevision, pos)
		return nil
	}),
}
