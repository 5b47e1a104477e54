package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/dmitrijs2005/secnexus/internal/logging"
)

// StreamName is the JetStream stream holding durable subjects.
const StreamName = "NEXUS_PROVISION"

// NATS is a Broker over NATS. Durable subjects go through a JetStream work
// queue stream; everything else uses core publish/subscribe.
type NATS struct {
	conn *nats.Conn
	js   jetstream.JetStream
	log  logging.Logger
}

// NewNATS connects with unlimited reconnects and makes sure the work queue
// stream exists. The server must have JetStream enabled. Extra options are
// appended to the defaults.
func NewNATS(url string, log logging.Logger, opts ...nats.Option) (*NATS, error) {
	defaults := []nats.Option{
		nats.Name("secnexus"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(context.Background(), "nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info(context.Background(), "nats reconnected", "url", c.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	subjects := make([]string, 0, len(durableSubjects))
	for s := range durableSubjects {
		subjects = append(subjects, s)
	}
	ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  subjects,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
	}

	return &NATS{conn: nc, js: js, log: log}, nil
}

func (b *NATS) Publish(ctx context.Context, subject string, payload any) error {
	if b.conn.IsClosed() {
		return ErrClosed
	}
	data, err := encode(payload)
	if err != nil {
		return err
	}

	ctx, cancel := withPublishTimeout(ctx)
	defer cancel()

	if _, ok := durableSubjects[subject]; ok {
		// returns once the stream has stored the message
		if _, err := b.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
		return nil
	}

	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := b.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

func (b *NATS) Subscribe(subject, queue string, h Handler) (func(), error) {
	if b.conn.IsClosed() {
		return nil, ErrClosed
	}
	if isDurable(subject, queue) {
		return b.consume(subject, queue, h)
	}

	cb := func(msg *nats.Msg) {
		if err := h(context.Background(), msg.Data); err != nil {
			b.log.Error(context.Background(), "message handler failed", "subject", msg.Subject, "error", err)
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = b.conn.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = b.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// the subscription must be registered server-side before we return so
	// that messages published on other connections are routed to it
	if err := b.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flushing subscription: %w", err)
	}

	return func() { _ = sub.Unsubscribe() }, nil
}

// consume attaches to the durable consumer named queue. Subscribers sharing
// the name share the consumer, so each message is handled by one of them.
func (b *NATS) consume(subject, queue string, h Handler) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
	defer cancel()

	cons, err := b.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       queue,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       AckWait,
	})
	if err != nil {
		return nil, fmt.Errorf("consumer %s on %s: %w", queue, subject, err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		if err := h(context.Background(), msg.Data()); err != nil {
			b.log.Error(context.Background(), "message handler failed, redelivering", "subject", msg.Subject(), "error", err)
			if err := msg.NakWithDelay(RedeliveryDelay); err != nil {
				b.log.Warn(context.Background(), "nak failed", "subject", msg.Subject(), "error", err)
			}
			return
		}
		if err := msg.Ack(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			b.log.Warn(context.Background(), "ack failed", "subject", msg.Subject(), "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", subject, err)
	}
	return cc.Stop, nil
}

// Close drains pending messages and closes the connection.
func (b *NATS) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}
