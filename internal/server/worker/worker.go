// Package worker consumes provisioning tasks from the broker and feeds them
// to a bounded pool of goroutines. A reconciler runs alongside and
// re-dispatches jobs that failed or were abandoned.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/broker"
	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

type Subscriber interface {
	Subscribe(subject, queue string, h broker.Handler) (func(), error)
}

type TaskHandler interface {
	Handle(ctx context.Context, task models.ProvisionTask) error
}

type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

type Config struct {
	Workers           int
	ReconcileInterval time.Duration
}

// work is one task handed to a worker. The worker reports on done whether
// the broker may drop the message.
type work struct {
	task models.ProvisionTask
	done chan error
}

type Pool struct {
	sub     Subscriber
	jobs    TaskHandler
	rec     Reconciler
	cfg     Config
	log     logging.Logger
	tasks   chan work
	started chan struct{}
}

func NewPool(sub Subscriber, jobs TaskHandler, rec Reconciler, cfg Config, log logging.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pool{
		sub:     sub,
		jobs:    jobs,
		rec:     rec,
		cfg:     cfg,
		log:     log.With("module", "worker"),
		tasks:   make(chan work),
		started: make(chan struct{}),
	}
}

// Started is closed once the pool is subscribed.
func (p *Pool) Started() <-chan struct{} { return p.started }

// Run blocks until ctx is cancelled. Tasks already handed to a worker are
// finished (their outcome recorded) before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	unsubscribe, err := p.sub.Subscribe(broker.SubjectProvisionRequested, broker.QueueProvisioners, func(_ context.Context, data []byte) error {
		return p.enqueue(ctx, data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", broker.SubjectProvisionRequested, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.work(ctx, n)
		}(i)
	}

	if p.rec != nil && p.cfg.ReconcileInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.reconcile(ctx)
		}()
	}

	p.log.Info(ctx, "provisioning workers started", "workers", p.cfg.Workers)
	close(p.started)

	<-ctx.Done()
	unsubscribe()
	wg.Wait()
	p.log.Info(context.Background(), "provisioning workers stopped")
	return nil
}

// enqueue blocks while every worker is busy, which holds the broker
// delivery back instead of buffering without bound. It returns once the task
// is handled; a non-nil result leaves the message with the broker for
// redelivery.
func (p *Pool) enqueue(ctx context.Context, data []byte) error {
	var task models.ProvisionTask
	if err := json.Unmarshal(data, &task); err != nil {
		p.log.Error(ctx, "malformed provisioning task dropped", "error", err)
		return nil
	}
	if task.EventID == "" {
		p.log.Error(ctx, "provisioning task without event id dropped")
		return nil
	}

	w := work{task: task, done: make(chan error, 1)}
	select {
	case p.tasks <- w:
	case <-ctx.Done():
		return fmt.Errorf("task %s not started: %w", task.EventID, ctx.Err())
	}
	// a worker that received w always answers
	return <-w.done
}

func (p *Pool) work(ctx context.Context, n int) {
	log := p.log.With("worker", n)
	for {
		select {
		case <-ctx.Done():
			return
		case w := <-p.tasks:
			err := p.jobs.Handle(ctx, w.task)
			switch {
			case err == nil:
			case errors.Is(err, common.ErrJobFailed):
				log.Warn(ctx, "task finished with error", "event_id", w.task.EventID, "error", err)
				err = nil
			default:
				log.Error(ctx, "task outcome not recorded, leaving it for redelivery", "event_id", w.task.EventID, "error", err)
			}
			w.done <- err
		}
	}
}

func (p *Pool) reconcile(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.rec.Reconcile(ctx); err != nil {
				p.log.Error(ctx, "reconcile failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
