// Package relay forwards the events of a persistent subscription group to NATS JetStream.
//
// Events are acknowledged only after JetStream persisted them, and nacked for retry when publishing fails. Each
// message carries the event id as its JetStream message id, so redeliveries are deduplicated by JetStream as well
// as by a local cache of recently relayed ids.
package relay

import (
	"context"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fission/esdb-client/pkg/esdb"
	"github.com/fission/esdb-client/pkg/util/backoff"
)

var relayedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "esdb",
	Subsystem: "relay",
	Name:      "events_total",
	Help:      "Count of relayed events by outcome.",
}, []string{"result"})

func init() {
	prometheus.MustRegister(relayedEvents)
}

const (
	HeaderEventType   = "Esdb-Event-Type"
	HeaderContentType = "Esdb-Content-Type"
	HeaderStream      = "Esdb-Stream"
	HeaderRevision    = "Esdb-Revision"
	HeaderRetryCount  = "Esdb-Retry-Count"
)

// Subscription is the part of *esdb.PersistentSubscription the relay uses.
type Subscription interface {
	Next() (*esdb.PersistentSubscriptionEvent, error)
	Ack(ctx context.Context, events ...*esdb.PersistentSubscriptionEvent) error
	Nack(ctx context.Context, action esdb.NackAction, reason string, events ...*esdb.PersistentSubscriptionEvent) error
	Close() error
}

// Subscriber joins the group. It is called again each time the subscription drops.
type Subscriber func(ctx context.Context) (Subscription, error)

// StreamSubscriber joins a group on a stream, or on the global log if streamName is esdb.AllStreamName.
func StreamSubscriber(c *esdb.Client, streamName, group string) Subscriber {
	return func(ctx context.Context) (Subscription, error) {
		opts := esdb.SubscribeToPersistentSubscriptionOptions{}
		if streamName == esdb.AllStreamName {
			return c.SubscribeToPersistentSubscriptionToAll(ctx, group, opts)
		}
		return c.SubscribeToPersistentSubscriptionToStream(ctx, streamName, group, opts)
	}
}

type Options struct {
	// SubjectPrefix is prepended to the stream name of each event to form its subject.
	SubjectPrefix string
	// DedupeSize is the number of relayed event ids remembered.
	DedupeSize int
	// MaxRetries bounds consecutive failed attempts to join the group. Zero means unlimited.
	MaxRetries int
	Logger     *logrus.Entry
}

type Relay struct {
	subscribe Subscriber
	publisher Publisher
	prefix    string
	seen      *lru.Cache
	backoff   *backoff.Instance
	log       *logrus.Entry
}

func New(subscribe Subscriber, publisher Publisher, opts Options) (*Relay, error) {
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = "esdb"
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = 4096
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "relay")
	}
	seen, err := lru.New(opts.DedupeSize)
	if err != nil {
		return nil, err
	}
	return &Relay{
		subscribe: subscribe,
		publisher: publisher,
		prefix:    opts.SubjectPrefix,
		seen:      seen,
		backoff:   backoff.New(100*time.Millisecond, 30*time.Second, opts.MaxRetries),
		log:       opts.Logger,
	}, nil
}

// Run relays events until ctx is done. A dropped subscription is re-joined with backoff; a group that does not
// exist ends the relay.
func (r *Relay) Run(ctx context.Context) error {
	for {
		sub, err := r.subscribe(ctx)
		if err == nil {
			r.backoff.Reset()
			err = r.drain(ctx, sub)
		}
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, esdb.ErrPersistentSubscriptionNotFound) {
			return err
		}
		r.log.WithError(err).WithField("attempt", r.backoff.Attempt).Warn("Relay subscription dropped.")
		if !r.backoff.Backoff(ctx) {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "relay gave up re-joining the group")
		}
	}
}

func (r *Relay) drain(ctx context.Context, sub Subscription) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-stop:
		}
	}()
	defer sub.Close()

	for {
		ev, err := sub.Next()
		if err != nil {
			return err
		}
		if err := r.relay(ctx, sub, ev); err != nil {
			return err
		}
	}
}

func (r *Relay) relay(ctx context.Context, sub Subscription, ev *esdb.PersistentSubscriptionEvent) error {
	id, err := ev.OriginalID()
	if err != nil {
		return err
	}
	key := id.String()
	if r.seen.Contains(key) {
		relayedEvents.WithLabelValues("duplicate").Inc()
		return sub.Ack(ctx, ev)
	}

	msg := r.message(key, ev)
	if err := r.publisher.Publish(ctx, msg); err != nil {
		relayedEvents.WithLabelValues("failed").Inc()
		r.log.WithError(err).WithField("event.id", key).Warn("Failed to publish event.")
		return sub.Nack(ctx, esdb.NackRetry, err.Error(), ev)
	}
	r.seen.Add(key, struct{}{})
	relayedEvents.WithLabelValues("published").Inc()
	return sub.Ack(ctx, ev)
}

func (r *Relay) message(id string, ev *esdb.PersistentSubscriptionEvent) Message {
	original := ev.OriginalEvent()
	// Links are relayed as the event they point to, under the subject of the link's stream.
	payload := original
	if ev.Event != nil {
		payload = ev.Event
	}
	return Message{
		Subject: r.prefix + "." + subjectToken(original.StreamName),
		ID:      id,
		Data:    payload.Data,
		Headers: map[string]string{
			HeaderEventType:   payload.Type,
			HeaderContentType: string(payload.ContentType),
			HeaderStream:      payload.StreamName,
			HeaderRevision:    payload.Revision.String(),
			HeaderRetryCount:  strconv.Itoa(int(ev.RetryCount)),
		},
	}
}

// RunAll runs relays until ctx is done or one of them fails.
func RunAll(ctx context.Context, relays ...*Relay) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range relays {
		r := r
		g.Go(func() error {
			return r.Run(ctx)
		})
	}
	return g.Wait()
}
