package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/fission/esdb-client/pkg/esdb"
	"github.com/fission/esdb-client/pkg/version"
)

func main() {
	app := cli.NewApp()
	app.Version = version.Version
	app.EnableBashCompletion = true
	app.Usage = "Append, read, and subscribe to an event store"
	app.Description = app.Usage
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "address, a",
			EnvVar: "ESDB_ADDRESS",
			Usage:  "Address of the event store (host:port)",
		},
		cli.StringFlag{
			Name:   "config, c",
			EnvVar: "ESDB_CONFIG",
			Usage:  "Path to a YAML client config",
		},
		cli.StringFlag{
			Name:   "server-version",
			EnvVar: "ESDB_SERVER_VERSION",
			Usage:  "Version of the server, to select the persistent subscription settings encoding",
		},
		cli.IntFlag{
			Name:   "verbosity",
			Value:  1,
			Usage:  "CLI verbosity (0 is quiet, 1 is the default, 2 is verbose.)",
			EnvVar: "ESDB_VERBOSITY",
		},
		cli.BoolFlag{
			Name:   "debug, d",
			EnvVar: "ESDB_DEBUG",
			Usage:  "Shorthand for --verbosity 2",
		},
	}
	app.Commands = []cli.Command{
		cmdConfig,
		cmdAppend,
		cmdRead,
		cmdSubscribe,
		cmdPersistent,
		cmdRelay,
		cmdVersion,
	}
	if err := app.Run(os.Args); err != nil {
		fail(err)
	}
}

func table(writer io.Writer, headings []string, rows [][]string) {
	w := tabwriter.NewWriter(writer, 0, 0, 5, ' ', 0)
	if headings != nil {
		fmt.Fprintln(w, strings.Join(headings, "\t")+"\t")
	}
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t")+"\t")
	}
	err := w.Flush()
	if err != nil {
		panic(err)
	}
}

func fail(msg ...interface{}) {
	for _, line := range msg {
		fmt.Fprintln(os.Stderr, line)
	}
	os.Exit(1)
}

// Context is the cli.Context of a command, cancelled when the process is interrupted.
type Context struct {
	*cli.Context
	ctx context.Context
}

func (c Context) Deadline() (deadline time.Time, ok bool) {
	return c.ctx.Deadline()
}

func (c Context) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c Context) Err() error {
	return c.ctx.Err()
}

func (c Context) Value(key interface{}) interface{} {
	return c.ctx.Value(key)
}

func commandContext(fn func(c Context) error) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		verbosity := c.GlobalInt("verbosity")
		if c.GlobalBool("debug") {
			verbosity = 2
		}
		switch verbosity {
		case 0:
			logrus.SetLevel(logrus.ErrorLevel)
		case 1:
			logrus.SetLevel(logrus.InfoLevel)
		default:
			logrus.SetLevel(logrus.DebugLevel)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return fn(Context{Context: c, ctx: ctx})
	}
}

func loadConfig(ctx Context) esdb.Config {
	cfg := esdb.Config{}
	if path := ctx.GlobalString("config"); path != "" {
		var err error
		if cfg, err = esdb.LoadConfig(path); err != nil {
			fail(err)
		}
	}
	if address := ctx.GlobalString("address"); address != "" {
		cfg.Address = address
	}
	if v := ctx.GlobalString("server-version"); v != "" {
		cfg.ServerVersion = v
	}
	return cfg.WithDefaults()
}

func getClient(ctx Context) *esdb.Client {
	client, err := esdb.Dial(loadConfig(ctx))
	if err != nil {
		fail(err)
	}
	return client
}
