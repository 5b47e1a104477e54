package jobs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/server/models"
)

// Repository is the provisioning job ledger.
type Repository interface {
	// Create inserts job unless a row for its event already exists. It
	// reports whether a row was inserted.
	Create(ctx context.Context, job *models.Job) (bool, error)
	Get(ctx context.Context, eventID string) (*models.Job, error)
	List(ctx context.Context, status string, limit int) ([]models.Job, error)
	// Claim moves a pending or failed job to running and counts the attempt.
	// It returns common.ErrorNotFound when the job is absent or not claimable.
	Claim(ctx context.Context, eventID string) (*models.Job, error)
	MarkSucceeded(ctx context.Context, eventID string) (*models.Job, error)
	MarkFailed(ctx context.Context, eventID, reason string) (*models.Job, error)
	// Reset makes a failed job pending again with a fresh attempt budget.
	Reset(ctx context.Context, eventID string) (*models.Job, error)
	// Stale lists jobs the reconciler should re-dispatch: failed ones and
	// pending/running ones not touched since before.
	Stale(ctx context.Context, before time.Time, maxAttempts, limit int) ([]models.Job, error)
}
