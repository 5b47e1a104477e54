// Package provisioning hands provisioning tasks from the client to the
// provisioner over the broker and lets the client observe their outcomes.
package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/secnexus/internal/broker"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

// Publisher is the part of broker.Broker the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Dispatcher publishes tasks in the background. Dispatch never blocks the
// caller on the broker and never reports failures to it; failures are
// logged and passed to OnError.
type Dispatcher struct {
	pub     Publisher
	log     logging.Logger
	timeout time.Duration
	backoff func() retry.Backoff

	// OnError, when set, is called once per task that could not be published.
	OnError func(task models.ProvisionTask, err error)

	wg sync.WaitGroup
}

func NewDispatcher(pub Publisher, timeout time.Duration, log logging.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		pub:     pub,
		log:     log.With("module", "dispatcher"),
		timeout: timeout,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
		},
	}
}

// Dispatch starts publishing task. The caller's cancellation does not stop
// the publish; the dispatcher's own timeout does.
func (d *Dispatcher) Dispatch(ctx context.Context, task models.ProvisionTask) {
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		err := retry.Do(ctx, d.backoff(), func(ctx context.Context) error {
			if err := d.pub.Publish(ctx, broker.SubjectProvisionRequested, task); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			d.log.Error(ctx, "provisioning task not dispatched", "event_id", task.EventID, "error", err)
			if d.OnError != nil {
				d.OnError(task, err)
			}
			return
		}
		d.log.Debug(ctx, "provisioning task dispatched", "event_id", task.EventID)
	}()
}

// Wait blocks until every started dispatch finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscriber is the part of broker.Broker the watcher needs.
type Subscriber interface {
	Subscribe(subject, queue string, h broker.Handler) (func(), error)
}

// Watch streams provisioning outcomes. An empty eventID streams all of them.
// The channel is closed after cancel is called.
func Watch(sub Subscriber, eventID string, log logging.Logger) (<-chan models.ProvisionOutcome, func(), error) {
	out := make(chan models.ProvisionOutcome, 16)

	var (
		mu     sync.Mutex
		closed bool
	)
	h := func(ctx context.Context, data []byte) error {
		var o models.ProvisionOutcome
		if err := json.Unmarshal(data, &o); err != nil {
			return fmt.Errorf("decode outcome: %w", err)
		}
		if eventID != "" && o.EventID != eventID {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return nil
		}
		select {
		case out <- o:
		default:
			log.Warn(ctx, "outcome dropped, watcher is slow", "event_id", o.EventID)
		}
		return nil
	}

	var cancels []func()
	for _, subject := range []string{broker.SubjectProvisionSucceeded, broker.SubjectProvisionFailed} {
		c, err := sub.Subscribe(subject, "", h)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			return nil, nil, err
		}
		cancels = append(cancels, c)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			for _, c := range cancels {
				c()
			}
			mu.Lock()
			closed = true
			close(out)
			mu.Unlock()
		})
	}
	return out, cancel, nil
}
