package mem

import (
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/fission/esdb-client/pkg/esdb/wire"
)

// Server serves the streams and persistent subscriptions services from a Store.
type Server struct {
	store      *Store
	groups     map[groupKey]*group
	groupsLock sync.RWMutex
	log        *logrus.Entry
}

func NewServer(store *Store, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.WithField("component", "esdb-mem")
	}
	return &Server{
		store:  store,
		groups: map[groupKey]*group{},
		log:    log,
	}
}

// Register installs both services on r. The gRPC server must use wire.ServerOption.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	wire.RegisterStreamsServer(r, streamsService{s})
	wire.RegisterPersistentSubscriptionsServer(r, persistentService{s})
}

func (s *Server) Store() *Store {
	return s.store
}
