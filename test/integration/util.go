package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ory/dockertest/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/fission/esdb-client/pkg/esdb"
)

const (
	EventStoreRepository = "eventstore/eventstore"
	EventStoreTag        = "23.10.0-bookworm-slim"
	NatsRepository       = "nats"
	NatsTag              = "2.10-alpine"
)

// Container is a dependency running in docker for the duration of a test run.
type Container struct {
	pool     *dockertest.Pool
	resource *dockertest.Resource
}

func (c *Container) Purge() {
	if err := c.pool.Purge(c.resource); err != nil {
		logrus.Errorf("Could not purge resource: %s", err)
	}
}

// RunEventStore starts an insecure, in-memory EventStoreDB node and returns a client connected to it.
func RunEventStore(pool *dockertest.Pool) (*esdb.Client, *Container, error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: EventStoreRepository,
		Tag:        EventStoreTag,
		Env: []string{
			"EVENTSTORE_INSECURE=true",
			"EVENTSTORE_MEM_DB=true",
			"EVENTSTORE_RUN_PROJECTIONS=None",
		},
		ExposedPorts: []string{"2113"},
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not start event store")
	}
	container := &Container{pool: pool, resource: resource}
	_ = resource.Expire(600)

	client, err := esdb.Dial(esdb.Config{
		Address:       resource.GetHostPort("2113/tcp"),
		ServerVersion: "23.10.0",
	})
	if err != nil {
		container.Purge()
		return nil, nil, err
	}

	// The node only accepts reads once it has elected itself leader.
	if err := pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		it, err := client.ReadAll(ctx, esdb.ReadAllOptions{MaxCount: 1})
		if err != nil {
			return err
		}
		defer it.Close()
		_, err = it.Collect()
		return err
	}); err != nil {
		client.Close()
		container.Purge()
		return nil, nil, errors.Wrap(err, "event store did not become ready")
	}
	logrus.WithField("address", resource.GetHostPort("2113/tcp")).Info("Event store running")
	return client, container, nil
}

// RunNats starts a NATS server with JetStream enabled and returns a connection to it.
func RunNats(pool *dockertest.Pool) (*nats.Conn, *Container, error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository:   NatsRepository,
		Tag:          NatsTag,
		Cmd:          []string{"-js", "-p", "4222"},
		ExposedPorts: []string{"4222"},
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not start nats")
	}
	container := &Container{pool: pool, resource: resource}
	_ = resource.Expire(600)

	var nc *nats.Conn
	if err := pool.Retry(func() error {
		var err error
		nc, err = nats.Connect(fmt.Sprintf("nats://%s", resource.GetHostPort("4222/tcp")))
		return err
	}); err != nil {
		container.Purge()
		return nil, nil, errors.Wrap(err, "could not connect to nats")
	}
	logrus.WithField("url", nc.ConnectedUrl()).Info("NATS server running")
	return nc, container, nil
}
