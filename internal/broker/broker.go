// Package broker carries provisioning tasks and their outcomes between the
// client and the provisioner. Messages are JSON documents addressed by
// subject; NATS, RabbitMQ and an in-process transport are supported.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/logging"
)

// Subjects used by SEC-NEXUS.
const (
	SubjectProvisionRequested = "nexus.provision.requested"
	SubjectProvisionSucceeded = "nexus.provision.succeeded"
	SubjectProvisionFailed    = "nexus.provision.failed"

	// QueueProvisioners is the queue group shared by provisioner replicas so
	// that each task is handled once.
	QueueProvisioners = "provisioners"
)

// durableSubjects maps the subjects whose messages are kept until a
// subscriber of the named queue acknowledges them. Messages on other
// subjects are delivered at most once.
var durableSubjects = map[string]string{
	SubjectProvisionRequested: QueueProvisioners,
}

var (
	// PublishTimeout bounds a publish whose context has no deadline.
	PublishTimeout = 5 * time.Second
	// RedeliveryDelay is how long a durable message rejected by its handler
	// waits before it is offered again.
	RedeliveryDelay = 5 * time.Second
	// AckWait is how long a durable message may stay unacknowledged before
	// the server offers it to another subscriber.
	AckWait = 5 * time.Minute
)

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker closed")

// Handler processes one message payload.
type Handler func(ctx context.Context, data []byte) error

// Broker publishes and consumes subject-addressed messages.
//
// Subscribe with an empty queue delivers every message to h; with a queue
// name, subscribers sharing it split the stream. The returned function
// cancels the subscription.
//
// Messages published on SubjectProvisionRequested are durable: they are kept
// while no QueueProvisioners subscriber exists and are acknowledged only
// when h returns nil. A non-nil result leaves the message for redelivery.
type Broker interface {
	Publish(ctx context.Context, subject string, payload any) error
	Subscribe(subject, queue string, h Handler) (func(), error)
	Close() error
}

// Open connects to the broker addressed by rawURL. The scheme selects the
// transport: nats://, amqp:// (or amqps://) and mem://.
func Open(rawURL string, log logging.Logger) (Broker, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	switch u.Scheme {
	case "nats":
		return NewNATS(rawURL, log)
	case "amqp", "amqps":
		return NewAMQP(rawURL, DefaultExchange, log)
	case "mem":
		return NewMemory(log), nil
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}

func isDurable(subject, queue string) bool {
	q, ok := durableSubjects[subject]
	return ok && queue != "" && q == queue
}

// withPublishTimeout gives ctx a deadline when it has none.
func withPublishTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, PublishTimeout)
}

func encode(payload any) ([]byte, error) {
	if b, ok := payload.([]byte); ok {
		return b, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling message: %w", err)
	}
	return data, nil
}
