package relay

import (
	"context"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
)

// Message is an event ready to be published to NATS.
type Message struct {
	Subject string
	// ID deduplicates the message in JetStream.
	ID      string
	Data    []byte
	Headers map[string]string
}

// Publisher publishes a message and returns once it is persisted.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// JetStreamPublisher publishes to a JetStream stream.
type JetStreamPublisher struct {
	js jetstream.JetStream
}

func NewJetStreamPublisher(nc *nats.Conn) (*JetStreamPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create JetStream context")
	}
	return &JetStreamPublisher{js: js}, nil
}

// EnsureStream creates or updates the JetStream stream that captures the relayed subjects.
func (p *JetStreamPublisher) EnsureStream(ctx context.Context, name string, subjectPrefix string) error {
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     strings.ToUpper(name),
		Subjects: []string{subjectPrefix + ".>"},
		Storage:  jetstream.FileStorage,
	})
	return errors.Wrapf(err, "failed to ensure stream %s", name)
}

func (p *JetStreamPublisher) Publish(ctx context.Context, msg Message) error {
	m := nats.NewMsg(msg.Subject)
	m.Data = msg.Data
	for k, v := range msg.Headers {
		m.Header.Set(k, v)
	}
	if _, err := p.js.PublishMsg(ctx, m, jetstream.WithMsgID(msg.ID)); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", msg.Subject)
	}
	return nil
}

// subjectToken turns a stream name into a single subject token.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
