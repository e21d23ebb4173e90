package esdb

import (
	"context"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/fission/esdb-client/pkg/esdb/backend/mem"
	"github.com/fission/esdb-client/pkg/esdb/wire"
)

// setup starts an in-memory event store on an in-process listener and returns a client connected to it.
func setup(t *testing.T) (*Client, *mem.Store) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(wire.ServerOption())
	store := mem.NewStore()
	mem.NewServer(store, logrus.WithField("test", t.Name())).Register(srv)
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
		store.Close()
	})
	return NewClient(conn, Config{}), store
}

func appendTypes(t *testing.T, c *Client, stream string, types ...string) *AppendResult {
	t.Helper()
	var events []EventData
	for _, et := range types {
		events = append(events, NewJSONEvent(et, []byte(`{"type":"`+et+`"}`)))
	}
	result, err := c.AppendToStream(context.Background(), stream, AppendOptions{}, events...)
	require.NoError(t, err)
	return result
}

func eventTypes(events []*ReadEvent) []string {
	var types []string
	for _, e := range events {
		types = append(types, e.OriginalEvent().Type)
	}
	return types
}
