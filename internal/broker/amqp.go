package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrijs2005/secnexus/internal/logging"
)

// DefaultExchange is the topic exchange SEC-NEXUS subjects are routed on.
const DefaultExchange = "nexus"

// AMQP is a Broker over a RabbitMQ topic exchange. Subjects are routing
// keys; queue groups map to durable shared queues. Publishes wait for the
// broker's confirm.
type AMQP struct {
	url      string
	exchange string
	log      logging.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	pub    *amqp.Channel
	closed bool
}

func NewAMQP(url, exchange string, log logging.Logger) (*AMQP, error) {
	b := &AMQP{url: url, exchange: exchange, log: log}
	if err := b.ensureConnection(); err != nil {
		return nil, err
	}
	return b, nil
}

// ensureConnection (re)dials when the connection was lost. Callers hold mu
// or are the constructor.
func (b *AMQP) ensureConnection() error {
	if b.conn != nil && !b.conn.IsClosed() && b.pub != nil && !b.pub.IsClosed() {
		return nil
	}
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("connecting to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", b.exchange, err)
	}
	// durable queues exist before the first publish so that messages sent
	// while no consumer runs are kept
	for subject, queue := range durableSubjects {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, subject, b.exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("bind %s to %s: %w", queue, subject, err)
		}
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}
	b.conn, b.pub = conn, ch
	return nil
}

func (b *AMQP) Publish(ctx context.Context, subject string, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return err
	}

	ctx, cancel := withPublishTimeout(ctx)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if err := b.ensureConnection(); err != nil {
		return err
	}
	conf, err := b.pub.PublishWithDeferredConfirmWithContext(ctx, b.exchange, subject, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         data,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: waiting for confirm: %w", subject, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: rejected by broker", subject)
	}
	return nil
}

func (b *AMQP) Subscribe(subject, queue string, h Handler) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if err := b.ensureConnection(); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	ch, err := b.conn.Channel()
	b.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// a named queue is durable and shared; an anonymous one is exclusive to
	// this subscriber and goes away with it
	durable, exclusive := queue != "", queue == ""
	q, err := ch.QueueDeclare(queue, durable, !durable, exclusive, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, subject, b.exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("bind %s to %s: %w", q.Name, subject, err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", false, exclusive, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}

	requeue := isDurable(subject, queue)
	go func() {
		for d := range deliveries {
			if err := h(context.Background(), d.Body); err != nil {
				b.log.Error(context.Background(), "message handler failed", "subject", d.RoutingKey, "requeue", requeue, "error", err)
				if requeue {
					time.Sleep(RedeliveryDelay)
				}
				_ = d.Nack(false, requeue)
				continue
			}
			_ = d.Ack(false)
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { _ = ch.Close() }) }, nil
}

func (b *AMQP) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.pub != nil {
		_ = b.pub.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
