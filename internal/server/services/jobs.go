package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/secnexus/internal/broker"
	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/dbx"
	"github.com/dmitrijs2005/secnexus/internal/idgen"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
	smodels "github.com/dmitrijs2005/secnexus/internal/server/models"
	"github.com/dmitrijs2005/secnexus/internal/server/repositories/repomanager"
)

var (
	// ErrJobRunning is returned when a retry is asked for a job in flight.
	ErrJobRunning = errors.New("job is running")
	// ErrUnknownStatus is returned by List for a status filter that is not
	// a job state.
	ErrUnknownStatus = errors.New("unknown job status")
)

// Provisioner performs the provisioning of one task.
type Provisioner interface {
	Provision(ctx context.Context, task models.ProvisionTask) error
}

// Publisher sends messages to the broker.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// JobPolicy bounds retries.
type JobPolicy struct {
	// MaxAttempts is the number of in-process tries per dispatch.
	MaxAttempts int
	RetryBase   time.Duration
	// StaleAfter is how long a pending or running job may stay untouched
	// before the reconciler picks it up.
	StaleAfter time.Duration
	// MaxDispatches caps how many times the reconciler re-dispatches a job.
	MaxDispatches int
}

// JobService runs provisioning tasks through the job ledger and reports
// every outcome.
type JobService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	provisioner Provisioner
	pub         Publisher
	policy      JobPolicy
	log         logging.Logger
	now         func() time.Time
	newJobID    func() (string, error)
}

func NewJobService(db *sql.DB, m repomanager.RepositoryManager, p Provisioner, pub Publisher, policy JobPolicy, log logging.Logger) *JobService {
	return &JobService{
		db:          db,
		repomanager: m,
		provisioner: p,
		pub:         pub,
		policy:      policy,
		log:         log.With("module", "jobs"),
		now:         time.Now,
		newJobID:    idgen.JobID,
	}
}

// Handle records task in the ledger, claims it and provisions it. Tasks for
// jobs that already succeeded or are running elsewhere are acknowledged
// without work. A provisioning failure that survived every in-process retry
// is recorded, published and returned wrapped in common.ErrJobFailed; any
// other error means the outcome was not recorded.
func (s *JobService) Handle(ctx context.Context, task models.ProvisionTask) error {
	if task.EventID == "" {
		return fmt.Errorf("task without event id")
	}

	job, err := s.claim(ctx, task)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}
	log := s.log.With("event_id", job.EventID, "job_id", job.ID, "dispatch", job.Attempts)
	log.Info(ctx, "provisioning started")

	b := retry.WithMaxRetries(uint64(max(s.policy.MaxAttempts-1, 0)), retry.NewExponential(s.policy.RetryBase))
	try := 0
	perr := retry.Do(ctx, b, func(ctx context.Context) error {
		try++
		err := s.provisioner.Provision(ctx, job.Task())
		if err != nil && common.IsTemporary(err) {
			log.Warn(ctx, "provisioning try failed", "try", try, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})

	// the outcome is recorded even when ctx was cancelled mid-way
	rctx := context.WithoutCancel(ctx)
	repo := s.repomanager.Jobs(s.db)
	var final *smodels.Job
	if perr == nil {
		final, err = repo.MarkSucceeded(rctx, job.EventID)
		log.Info(ctx, "provisioning succeeded", "tries", try)
	} else {
		final, err = repo.MarkFailed(rctx, job.EventID, perr.Error())
		log.Error(ctx, "provisioning failed", "tries", try, "error", perr)
	}
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	s.publishOutcome(rctx, final)
	if perr != nil {
		return fmt.Errorf("%w: %w", common.ErrJobFailed, perr)
	}
	return nil
}

// claim creates the ledger row if needed and moves it to running in one
// transaction. It returns nil when there is nothing to do.
func (s *JobService) claim(ctx context.Context, task models.ProvisionTask) (*smodels.Job, error) {
	id, err := s.newJobID()
	if err != nil {
		return nil, err
	}

	var claimed *smodels.Job
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Jobs(tx)
		if _, err := repo.Create(ctx, &smodels.Job{
			ID:        id,
			EventID:   task.EventID,
			EventName: task.EventName,
			OwnerID:   task.OwnerID,
			Sponsors:  task.Sponsors,
		}); err != nil {
			return err
		}

		claimed, err = repo.Claim(ctx, task.EventID)
		if errors.Is(err, common.ErrorNotFound) {
			claimed = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if claimed == nil {
		s.log.Debug(ctx, "task skipped, job done or in flight", "event_id", task.EventID)
	}
	return claimed, nil
}

func (s *JobService) publishOutcome(ctx context.Context, job *smodels.Job) {
	subject := broker.SubjectProvisionSucceeded
	if job.Status != models.JobSucceeded {
		subject = broker.SubjectProvisionFailed
	}
	if err := s.pub.Publish(ctx, subject, job.Outcome()); err != nil {
		s.log.Error(ctx, "publish outcome failed", "event_id", job.EventID, "error", err)
	}
}

// Get returns the job of eventID or common.ErrorNotFound.
func (s *JobService) Get(ctx context.Context, eventID string) (*smodels.Job, error) {
	return s.repomanager.Jobs(s.db).Get(ctx, eventID)
}

// List returns the newest jobs, optionally filtered by status.
func (s *JobService) List(ctx context.Context, status string, limit int) ([]smodels.Job, error) {
	switch status {
	case "", models.JobPending, models.JobRunning, models.JobSucceeded, models.JobFailed:
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownStatus, status)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repomanager.Jobs(s.db).List(ctx, status, limit)
}

// Retry re-dispatches the job of eventID. Failed jobs get a fresh attempt
// budget; pending jobs are only re-sent.
func (s *JobService) Retry(ctx context.Context, eventID string) (*smodels.Job, error) {
	repo := s.repomanager.Jobs(s.db)
	job, err := repo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.JobSucceeded:
		return nil, common.ErrJobSucceeded
	case models.JobRunning:
		return nil, ErrJobRunning
	case models.JobFailed:
		if job, err = repo.Reset(ctx, eventID); err != nil {
			return nil, err
		}
	}

	if err := s.pub.Publish(ctx, broker.SubjectProvisionRequested, job.Task()); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	s.log.Info(ctx, "job re-dispatched on request", "event_id", eventID)
	return job, nil
}

// Reconcile re-dispatches failed jobs and jobs stuck in pending or running.
// Stuck running jobs are marked failed first so that they can be claimed.
func (s *JobService) Reconcile(ctx context.Context) (int, error) {
	repo := s.repomanager.Jobs(s.db)
	stale, err := repo.Stale(ctx, s.now().Add(-s.policy.StaleAfter), s.policy.MaxDispatches, 100)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, job := range stale {
		if job.Status == models.JobRunning {
			if _, err := repo.MarkFailed(ctx, job.EventID, "abandoned by worker"); err != nil {
				s.log.Error(ctx, "mark abandoned job failed", "event_id", job.EventID, "error", err)
				continue
			}
		}
		if err := s.pub.Publish(ctx, broker.SubjectProvisionRequested, job.Task()); err != nil {
			return n, fmt.Errorf("dispatch %s: %w", job.EventID, err)
		}
		n++
	}
	if n > 0 {
		s.log.Info(ctx, "jobs re-dispatched", "count", n)
	}
	return n, nil
}
