package provisioning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/secnexus/internal/broker"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	subjects []string
}

func (p *flakyPublisher) Publish(ctx context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.subjects = append(p.subjects, subject)
	if p.calls <= p.failures {
		return errors.New("broker unavailable")
	}
	return nil
}

func fastBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
}

func TestDispatch_RetriesThenSucceeds(t *testing.T) {
	pub := &flakyPublisher{failures: 2}
	d := NewDispatcher(pub, time.Second, logging.Nop{})
	d.backoff = fastBackoff
	var failed bool
	d.OnError = func(models.ProvisionTask, error) { failed = true }

	d.Dispatch(context.Background(), models.ProvisionTask{EventID: "e1"})
	require.NoError(t, d.Wait(context.Background()))

	assert.Equal(t, 3, pub.calls)
	assert.Equal(t, broker.SubjectProvisionRequested, pub.subjects[0])
	assert.False(t, failed)
}

func TestDispatch_GivesUpAndReports(t *testing.T) {
	pub := &flakyPublisher{failures: 100}
	d := NewDispatcher(pub, time.Second, logging.Nop{})
	d.backoff = fastBackoff

	var got models.ProvisionTask
	d.OnError = func(task models.ProvisionTask, err error) {
		got = task
		assert.ErrorContains(t, err, "broker unavailable")
	}

	d.Dispatch(context.Background(), models.ProvisionTask{EventID: "e2"})
	require.NoError(t, d.Wait(context.Background()))
	assert.Equal(t, "e2", got.EventID)
	assert.Equal(t, 4, pub.calls)
}

func TestDispatch_SurvivesCallerCancellation(t *testing.T) {
	b := broker.NewMemory(logging.Nop{})
	defer b.Close()

	got := make(chan []byte, 1)
	_, err := b.Subscribe(broker.SubjectProvisionRequested, broker.QueueProvisioners, func(_ context.Context, d []byte) error {
		got <- d
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(b, time.Second, logging.Nop{})
	d.Dispatch(ctx, models.ProvisionTask{EventID: "e3"})
	cancel()

	select {
	case data := <-got:
		assert.Contains(t, string(data), `"event_id":"e3"`)
	case <-time.After(2 * time.Second):
		t.Fatal("task not delivered")
	}
}

func TestWait_ContextDone(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(publisherFunc(func(ctx context.Context) error { <-block; return nil }), time.Second, logging.Nop{})
	d.Dispatch(context.Background(), models.ProvisionTask{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)
	close(block)
}

type publisherFunc func(ctx context.Context) error

func (f publisherFunc) Publish(ctx context.Context, _ string, _ any) error { return f(ctx) }

func TestWatch_FiltersByEvent(t *testing.T) {
	b := broker.NewMemory(logging.Nop{})
	defer b.Close()

	ch, cancel, err := Watch(b, "e1", logging.Nop{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, broker.SubjectProvisionSucceeded, models.ProvisionOutcome{EventID: "other", Status: models.JobSucceeded}))
	require.NoError(t, b.Publish(ctx, broker.SubjectProvisionFailed, models.ProvisionOutcome{EventID: "e1", Status: models.JobFailed, Error: "boom"}))

	select {
	case o := <-ch:
		assert.Equal(t, "e1", o.EventID)
		assert.Equal(t, models.JobFailed, o.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome")
	}

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}
