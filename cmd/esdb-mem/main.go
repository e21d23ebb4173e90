package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/fission/esdb-client/pkg/esdb/backend/mem"
	"github.com/fission/esdb-client/pkg/esdb/wire"
	"github.com/fission/esdb-client/pkg/util"
	"github.com/fission/esdb-client/pkg/version"
)

const shutdownDeadline = 30 * time.Second

func main() {
	ctx, cancelFn := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		fmt.Println("Received signal: ", sig)
		go func() {
			time.Sleep(shutdownDeadline)
			fmt.Println("Deadline exceeded; forcing shutdown.")
			os.Exit(0)
		}()
		cancelFn()
	}()

	cliApp := createCli()
	cliApp.Action = func(c *cli.Context) error {
		setupLogging(c)
		return run(ctx, &options{
			Address:        c.String("address"),
			MetricsAddress: c.String("metrics-address"),
			Tracing:        c.Bool("tracing"),
			Debug:          c.Bool("debug"),
		})
	}
	if err := cliApp.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

type options struct {
	Address        string
	MetricsAddress string
	Tracing        bool
	Debug          bool
}

// run serves an in-memory event store over gRPC until ctx is done.
func run(ctx context.Context, opts *options) error {
	log := logrus.WithField("component", "esdb-mem")

	if opts.Tracing {
		closer, err := setupTracing()
		if err != nil {
			return err
		}
		defer closer.Close()
	}

	serverOpts := util.ServerOptions{Tracing: opts.Tracing}
	if opts.Debug {
		serverOpts.Logger = log
	}
	grpcServer := util.NewGrpcServer(serverOpts, wire.ServerOption())
	store := mem.NewStore()
	defer store.Close()
	mem.NewServer(store, log).Register(grpcServer)
	grpc_prometheus.Register(grpcServer)

	lis, err := net.Listen("tcp", opts.Address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", opts.Address)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Serving event store at %s", lis.Addr())
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		grpcServer.GracefulStop()
		log.Info("Stopped gRPC server.")
		return nil
	})

	if opts.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{
			Addr:    opts.MetricsAddress,
			Handler: handlers.LoggingHandler(os.Stdout, mux),
		}
		g.Go(func() error {
			log.Infof("Set up prometheus collector: %v/metrics", opts.MetricsAddress)
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return metricsSrv.Shutdown(context.Background())
		})
	}
	return g.Wait()
}

// setupTracing installs a Jaeger tracer, configured from the JAEGER_* environment variables, as the global tracer.
func setupTracing() (io.Closer, error) {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, errors.Wrap(err, "invalid jaeger config")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "esdb-mem"
	}
	tracer, closer, err := cfg.NewTracer(
		jaegercfg.Logger(jaeger.StdLogger),
		jaegercfg.Tag("version", version.Version),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create jaeger tracer")
	}
	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}

func setupLogging(c *cli.Context) {
	if c.Bool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func createCli() *cli.App {
	cliApp := cli.NewApp()
	cliApp.Name = "esdb-mem"
	cliApp.Usage = "In-memory event store serving the streams and persistent subscriptions gRPC services"
	cliApp.Version = version.Version
	cliApp.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:   "d, debug",
			EnvVar: "ESDB_DEBUG",
		},
		cli.StringFlag{
			Name:   "address",
			Usage:  "Address to serve gRPC on",
			Value:  ":2113",
			EnvVar: "ESDB_MEM_ADDRESS",
		},
		cli.StringFlag{
			Name:   "metrics-address",
			Usage:  "Address to serve prometheus metrics on (empty to disable)",
			Value:  ":8080",
			EnvVar: "ESDB_MEM_METRICS_ADDRESS",
		},
		cli.BoolFlag{
			Name:   "tracing",
			Usage:  "Trace calls with Jaeger",
			EnvVar: "ESDB_MEM_TRACING",
		},
	}
	return cliApp
}
