package mem

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"sync"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fission/esdb-client/pkg/esdb/backend"
	"github.com/fission/esdb-client/pkg/esdb/wire"
	"github.com/fission/esdb-client/pkg/util/pubsub"
)

const allStream = "$all"

var errMemberStopped = errors.New("member stopped")

type groupKey struct {
	stream string
	group  string
}

func (k groupKey) String() string {
	return k.stream + "::" + k.group
}

type groupSettings struct {
	resolveLinks     bool
	maxRetryCount    int32
	maxSubscribers   int32
	strategy         string
	messageTimeoutMs int32
	startFrom        string
}

func settingsFromWire(s *wire.Settings) groupSettings {
	if s == nil {
		s = &wire.Settings{}
	}
	out := groupSettings{
		resolveLinks:   s.ResolveLinks,
		maxRetryCount:  s.MaxRetryCount,
		maxSubscribers: s.MaxSubscriberCount,
		strategy:       s.ConsumerStrategy,
	}
	if out.strategy == "" {
		switch s.NamedConsumerStrategy {
		case wire.DispatchToSingle:
			out.strategy = "DispatchToSingle"
		case wire.Pinned:
			out.strategy = "Pinned"
		default:
			out.strategy = "RoundRobin"
		}
	}
	switch {
	case s.MessageTimeoutMs != nil:
		out.messageTimeoutMs = *s.MessageTimeoutMs
	case s.MessageTimeoutTicks != nil:
		out.messageTimeoutMs = int32(*s.MessageTimeoutTicks / 10000)
	}
	return out
}

type delivery struct {
	record       *Record
	retryCount   int32
	resolveLinks bool
}

type inFlight struct {
	delivery *delivery
	member   *member
}

type member struct {
	bufferSize int32
	inFlight   int32
	stopped    bool
	// dropped is set when the group is deleted or updated under the member.
	dropped bool
}

// group is a persistent subscription group. Members pull deliveries from it; every change to the group closes
// and replaces its changed channel to wake members waiting for one.
type group struct {
	key      groupKey
	settings groupSettings
	filter   *filter
	cursor   int
	retry    []*delivery
	inFlight map[uuid.UUID]*inFlight
	parked   []*delivery
	members  []*member
	rr       int
	changed  chan struct{}
	lock     sync.Mutex
}

func (g *group) broadcast() {
	close(g.changed)
	g.changed = make(chan struct{})
}

// reset positions the group at cursor and forgets everything pending. Members are dropped.
func (g *group) reset(cursor int) {
	g.cursor = cursor
	g.retry = nil
	g.inFlight = map[uuid.UUID]*inFlight{}
	for _, m := range g.members {
		m.dropped = true
	}
	g.members = nil
	g.broadcast()
}

func (g *group) join(bufferSize int32) (*member, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.settings.maxSubscribers > 0 && int32(len(g.members)) >= g.settings.maxSubscribers {
		return nil, status.Errorf(codes.FailedPrecondition, "maximum subscribers reached for %v", g.key)
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	m := &member{bufferSize: bufferSize}
	g.members = append(g.members, m)
	g.broadcast()
	return m, nil
}

// leave removes a member and hands its unsettled deliveries back to the group.
func (g *group) leave(m *member) {
	g.lock.Lock()
	defer g.lock.Unlock()
	for i, other := range g.members {
		if other == m {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	for id, f := range g.inFlight {
		if f.member == m {
			delete(g.inFlight, id)
			g.retry = append(g.retry, f.delivery)
		}
	}
	g.broadcast()
}

// next returns the next delivery for m, or nil and a channel that is closed when it is worth asking again.
func (g *group) next(m *member, records []*Record) (*delivery, <-chan struct{}, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if m.dropped {
		return nil, nil, status.Errorf(codes.Canceled, "persistent subscription %v was changed or deleted", g.key)
	}
	if m.stopped {
		return nil, nil, errMemberStopped
	}

	d := g.peek(records)
	if d == nil {
		return nil, g.changed, nil
	}
	idx := g.assignee(d)
	if idx < 0 || g.members[idx] != m {
		return nil, g.changed, nil
	}
	g.rr = (idx + 1) % len(g.members)
	if len(g.retry) > 0 && g.retry[0] == d {
		g.retry = g.retry[1:]
	} else {
		g.cursor++
	}
	d.resolveLinks = g.settings.resolveLinks
	g.inFlight[d.record.ID] = &inFlight{delivery: d, member: m}
	m.inFlight++
	g.broadcast()
	return d, nil, nil
}

func (g *group) peek(records []*Record) *delivery {
	if len(g.retry) > 0 {
		return g.retry[0]
	}
	for ; g.cursor < len(records); g.cursor++ {
		if g.filter.match(records[g.cursor]) {
			return &delivery{record: records[g.cursor]}
		}
	}
	return nil
}

// assignee returns the index of the member with capacity that should receive d according to the consumer
// strategy, or -1.
func (g *group) assignee(d *delivery) int {
	n := len(g.members)
	hasCapacity := func(i int) bool {
		m := g.members[i]
		return !m.stopped && m.inFlight < m.bufferSize
	}

	switch g.settings.strategy {
	case "DispatchToSingle":
		for i := range g.members {
			if hasCapacity(i) {
				return i
			}
		}
	case "Pinned":
		if n == 0 {
			return -1
		}
		h := fnv.New32a()
		h.Write([]byte(d.record.Stream))
		if i := int(h.Sum32() % uint32(n)); hasCapacity(i) {
			return i
		}
	default:
		for i := 0; i < n; i++ {
			if j := (g.rr + i) % n; hasCapacity(j) {
				return j
			}
		}
	}
	return -1
}

func (g *group) settle(m *member, req *wire.PersistentReadReq) error {
	g.lock.Lock()
	defer g.lock.Unlock()
	defer g.broadcast()

	switch {
	case req.Ack != nil:
		ids, err := parseIDs(req.Ack.IDs)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if g.take(id) != nil {
				backend.PersistentOutcomes.WithLabelValues("ack").Inc()
			}
		}
	case req.Nack != nil:
		ids, err := parseIDs(req.Nack.IDs)
		if err != nil {
			return err
		}
		for _, id := range ids {
			d := g.take(id)
			if d == nil {
				continue
			}
			g.nack(d, req.Nack.Action)
		}
		if req.Nack.Action == wire.NackStop {
			m.stopped = true
		}
	default:
		return status.Error(codes.InvalidArgument, "expected ack or nack")
	}
	return nil
}

func (g *group) take(id uuid.UUID) *delivery {
	f, ok := g.inFlight[id]
	if !ok {
		return nil
	}
	delete(g.inFlight, id)
	f.member.inFlight--
	return f.delivery
}

func (g *group) nack(d *delivery, action wire.NackAction) {
	switch action {
	case wire.NackPark:
		g.parked = append(g.parked, d)
		backend.PersistentOutcomes.WithLabelValues("park").Inc()
	case wire.NackSkip:
		backend.PersistentOutcomes.WithLabelValues("skip").Inc()
	case wire.NackStop:
		g.retry = append(g.retry, d)
		backend.PersistentOutcomes.WithLabelValues("stop").Inc()
	default:
		d.retryCount++
		if d.retryCount > g.settings.maxRetryCount {
			g.parked = append(g.parked, d)
			backend.PersistentOutcomes.WithLabelValues("park").Inc()
			return
		}
		g.retry = append(g.retry, d)
		backend.PersistentOutcomes.WithLabelValues("retry").Inc()
	}
}

func (g *group) info(lastKnown string) *wire.SubscriptionInfo {
	g.lock.Lock()
	defer g.lock.Unlock()
	return &wire.SubscriptionInfo{
		EventSource:                g.key.stream,
		GroupName:                  g.key.group,
		Status:                     "Live",
		LastKnownEventPosition:     lastKnown,
		ResolveLinkTos:             g.settings.resolveLinks,
		StartFrom:                  g.settings.startFrom,
		MessageTimeoutMilliseconds: g.settings.messageTimeoutMs,
		MaxRetryCount:              g.settings.maxRetryCount,
		TotalInFlightMessages:      int32(len(g.inFlight)),
		OutstandingMessagesCount:   int32(len(g.retry)),
		NamedConsumerStrategy:      g.settings.strategy,
		MaxSubscriberCount:         g.settings.maxSubscribers,
		ParkedMessageCount:         int64(len(g.parked)),
	}
}

func parseIDs(ids []*wire.UUID) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		parsed, err := id.Parse()
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid event id: %v", err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

//
// Service
//

func (s *Server) lookup(key groupKey) (*group, error) {
	s.groupsLock.RLock()
	defer s.groupsLock.RUnlock()
	g, ok := s.groups[key]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "persistent subscription %v does not exist", key)
	}
	return g, nil
}

func (s *Server) source(key groupKey) []*Record {
	if key.stream == allStream {
		return s.store.All()
	}
	records, _ := s.store.Stream(key.stream)
	return records
}

// groupStart resolves where a group starts reading. Persistent subscriptions include their start point.
func (s *Server) groupStart(opts *wire.GroupOptions) (key groupKey, cursor int, startFrom string, f *filter, err error) {
	key.group = opts.GroupName
	switch {
	case opts.All != nil:
		key.stream = allStream
		length := len(s.store.All())
		switch {
		case opts.All.Position != nil:
			cursor = index(opts.All.Position.CommitPosition)
			startFrom = fmt.Sprintf("C:%d/P:%d", opts.All.Position.CommitPosition, opts.All.Position.PreparePosition)
		case opts.All.End != nil:
			cursor, startFrom = length, "End"
		default:
			startFrom = "Start"
		}
		f, err = compileFilter(opts.All.Filter)
		if err != nil {
			err = status.Error(codes.InvalidArgument, err.Error())
		}
	case opts.Stream != nil:
		key.stream = opts.Stream.StreamIdentifier.Name()
		records, _ := s.store.Stream(key.stream)
		switch {
		case opts.Stream.Revision != nil:
			cursor = index(*opts.Stream.Revision)
			startFrom = fmt.Sprint(*opts.Stream.Revision)
		case opts.Stream.End != nil:
			cursor, startFrom = len(records), "End"
		default:
			startFrom = "Start"
		}
	default:
		// Older clients only name the stream and put the start revision in the settings.
		key.stream = opts.StreamIdentifier.Name()
		if opts.Settings != nil {
			cursor = index(opts.Settings.Revision)
		}
		startFrom = fmt.Sprint(cursor)
	}
	if key.stream == "" || key.group == "" {
		err = status.Error(codes.InvalidArgument, "persistent subscription needs a stream and a group")
	}
	return key, cursor, startFrom, f, err
}

// persistentService serves persistent subscription groups.
type persistentService struct {
	*Server
}

func (s persistentService) Create(ctx context.Context, req *wire.CreateReq) (*wire.Empty, error) {
	if req.Options == nil {
		return nil, status.Error(codes.InvalidArgument, "create without options")
	}
	key, cursor, startFrom, f, err := s.groupStart(req.Options)
	if err != nil {
		return nil, err
	}
	settings := settingsFromWire(req.Options.Settings)
	settings.startFrom = startFrom

	s.groupsLock.Lock()
	defer s.groupsLock.Unlock()
	if _, ok := s.groups[key]; ok {
		return nil, status.Errorf(codes.AlreadyExists, "persistent subscription %v already exists", key)
	}
	s.groups[key] = &group{
		key:      key,
		settings: settings,
		filter:   f,
		cursor:   cursor,
		inFlight: map[uuid.UUID]*inFlight{},
		changed:  make(chan struct{}),
	}
	s.log.WithField("group", key).Info("Created persistent subscription.")
	return &wire.Empty{}, nil
}

func (s persistentService) Update(ctx context.Context, req *wire.UpdateReq) (*wire.Empty, error) {
	if req.Options == nil {
		return nil, status.Error(codes.InvalidArgument, "update without options")
	}
	key, cursor, startFrom, _, err := s.groupStart(req.Options)
	if err != nil {
		return nil, err
	}
	g, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	g.lock.Lock()
	defer g.lock.Unlock()
	g.settings = settingsFromWire(req.Options.Settings)
	g.settings.startFrom = startFrom
	g.reset(cursor)
	s.log.WithField("group", key).Info("Updated persistent subscription.")
	return &wire.Empty{}, nil
}

func (s persistentService) Delete(ctx context.Context, req *wire.DeleteReq) (*wire.Empty, error) {
	if req.Options == nil {
		return nil, status.Error(codes.InvalidArgument, "delete without options")
	}
	key := groupKey{stream: req.Options.StreamIdentifier.Name(), group: req.Options.GroupName}
	if req.Options.All != nil {
		key.stream = allStream
	}

	s.groupsLock.Lock()
	g, ok := s.groups[key]
	delete(s.groups, key)
	s.groupsLock.Unlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "persistent subscription %v does not exist", key)
	}
	g.lock.Lock()
	g.reset(g.cursor)
	g.lock.Unlock()
	s.log.WithField("group", key).Info("Deleted persistent subscription.")
	return &wire.Empty{}, nil
}

func (s persistentService) GetInfo(ctx context.Context, req *wire.GetInfoReq) (*wire.GetInfoResp, error) {
	if req.Options == nil {
		return nil, status.Error(codes.InvalidArgument, "get info without options")
	}
	key := groupKey{stream: req.Options.StreamIdentifier.Name(), group: req.Options.GroupName}
	if req.Options.All != nil {
		key.stream = allStream
	}
	g, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	lastKnown := ""
	if records := s.source(key); len(records) > 0 {
		last := records[len(records)-1]
		if key.stream == allStream {
			lastKnown = fmt.Sprintf("C:%d/P:%d", last.Position, last.Position)
		} else {
			lastKnown = fmt.Sprint(last.Revision)
		}
	}
	return &wire.GetInfoResp{SubscriptionInfo: g.info(lastKnown)}, nil
}

// Read serves one member of a group: it delivers events the group assigns to the member and settles the acks and
// nacks the member sends back.
func (s persistentService) Read(stream grpc.BidiStreamingServer[wire.PersistentReadReq, wire.PersistentReadResp]) error {
	req, err := stream.Recv()
	if err != nil {
		return err
	}
	opts := req.Options
	if opts == nil {
		return status.Error(codes.InvalidArgument, "persistent read must start with options")
	}
	key := groupKey{stream: opts.StreamIdentifier.Name(), group: opts.GroupName}
	if opts.All != nil {
		key.stream = allStream
	}
	g, err := s.lookup(key)
	if err != nil {
		return err
	}
	m, err := g.join(opts.BufferSize)
	if err != nil {
		return err
	}
	defer g.leave(m)

	matcher := func(msg pubsub.Msg) bool { return true }
	if key.stream != allStream {
		matcher = func(msg pubsub.Msg) bool {
			rec, ok := msg.(*Record)
			return ok && rec.Stream == key.stream
		}
	}
	wake := s.store.Subscribe(pubsub.SubscriptionOptions{Buf: 1, Matcher: matcher})
	defer s.store.Unsubscribe(wake)
	backend.Subscriptions.WithLabelValues("persistent").Inc()
	defer backend.Subscriptions.WithLabelValues("persistent").Dec()

	log := s.log.WithField("group", key)
	if err := stream.Send(&wire.PersistentReadResp{
		SubscriptionConfirmation: &wire.SubscriptionConfirmation{SubscriptionID: key.String()},
	}); err != nil {
		return err
	}
	log.Debug("Member joined.")

	recvErr := make(chan error, 1)
	go func() {
		for {
			req, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			if err := g.settle(m, req); err != nil {
				recvErr <- err
				return
			}
		}
	}()

	ctx := stream.Context()
	for {
		d, changed, err := g.next(m, s.source(key))
		if err == errMemberStopped {
			log.Debug("Member stopped.")
			return nil
		}
		if err != nil {
			return err
		}
		if d != nil {
			ev := s.store.ReadEvent(d.record, d.resolveLinks)
			if d.retryCount > 0 {
				ev.RetryCount = wire.Int32(d.retryCount)
			} else {
				ev.NoRetryCount = &wire.Empty{}
			}
			if err := stream.Send(&wire.PersistentReadResp{Event: ev}); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-recvErr:
			if err == io.EOF {
				return nil
			}
			log.WithError(err).Debug("Member left.")
			return err
		case <-changed:
		case _, ok := <-wake.Ch:
			if !ok {
				return status.Error(codes.Unavailable, "store closed")
			}
		}
	}
}
