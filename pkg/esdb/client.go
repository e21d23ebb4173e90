// Package esdb is a client for an append-only event store speaking the EventStoreDB gRPC protocol.
//
// A Client appends events with optimistic concurrency, reads streams and the global log, and opens transient and
// persistent subscriptions. It consumes a grpc.ClientConnInterface; establishing and securing that connection is
// left to the caller or to Dial.
package esdb

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/fission/esdb-client/pkg/esdb/wire"
	"github.com/fission/esdb-client/pkg/util"
)

type Client struct {
	streams    wire.StreamsClient
	persistent wire.PersistentSubscriptionsClient
	config     Config
	log        *logrus.Entry
	closer     io.Closer
}

// NewClient returns a client using conn for every call. The client does not take ownership of conn.
func NewClient(conn grpc.ClientConnInterface, cfg Config) *Client {
	cfg = cfg.WithDefaults()
	return &Client{
		streams:    wire.NewStreamsClient(conn),
		persistent: wire.NewPersistentSubscriptionsClient(conn),
		config:     cfg,
		log:        cfg.Logger,
	}
}

// Dial connects to the configured address. Closing the client closes the connection.
func Dial(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	conn, err := util.NewGrpcConn(cfg.Address, util.ConnOptions{
		Tracing:         cfg.Tracing,
		UnaryMaxRetries: cfg.UnaryMaxRetries,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", cfg.Address)
	}
	c := NewClient(conn, cfg)
	c.closer = conn
	return c, nil
}

func (c *Client) Config() Config {
	return c.config
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
