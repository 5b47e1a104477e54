// Package jobs provides the PostgreSQL-backed provisioning job ledger.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/dbx"
	"github.com/dmitrijs2005/secnexus/internal/server/models"
)

const columns = `id, event_id, event_name, owner_id, sponsors, status, attempts, last_error, created_at, updated_at, finished_at`

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*models.Job, error) {
	var (
		j        models.Job
		sponsors []byte
		finished sql.NullTime
	)
	if err := s.Scan(&j.ID, &j.EventID, &j.EventName, &j.OwnerID, &sponsors, &j.Status,
		&j.Attempts, &j.LastError, &j.CreatedAt, &j.UpdatedAt, &finished); err != nil {
		return nil, err
	}
	if len(sponsors) > 0 {
		if err := json.Unmarshal(sponsors, &j.Sponsors); err != nil {
			return nil, fmt.Errorf("decode sponsors: %w", err)
		}
	}
	if finished.Valid {
		t := finished.Time
		j.FinishedAt = &t
	}
	return &j, nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return j, nil
}

func (r *PostgresRepository) many(ctx context.Context, query string, args ...any) ([]models.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	res := make([]models.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		res = append(res, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return res, nil
}

func (r *PostgresRepository) Create(ctx context.Context, job *models.Job) (bool, error) {
	sponsors, err := json.Marshal(job.Sponsors)
	if err != nil {
		return false, fmt.Errorf("encode sponsors: %w", err)
	}
	query := `
		INSERT INTO provision_jobs (id, event_id, event_name, owner_id, sponsors)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, job.ID, job.EventID, job.EventName, job.OwnerID, sponsors)
	if err != nil {
		return false, fmt.Errorf("error performing sql request: %w", err)
	}
	if err := dbx.ExpectRows(res); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) Get(ctx context.Context, eventID string) (*models.Job, error) {
	return r.one(ctx, `SELECT `+columns+` FROM provision_jobs WHERE event_id = $1`, eventID)
}

// List returns the newest jobs first. An empty status lists all of them.
func (r *PostgresRepository) List(ctx context.Context, status string, limit int) ([]models.Job, error) {
	query := `
		SELECT ` + columns + `
		FROM provision_jobs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.many(ctx, query, status, limit)
}

func (r *PostgresRepository) Claim(ctx context.Context, eventID string) (*models.Job, error) {
	query := `
		UPDATE provision_jobs
		SET status = 'running', attempts = attempts + 1, updated_at = now()
		WHERE event_id = $1 AND status IN ('pending', 'failed')
		RETURNING ` + columns
	return r.one(ctx, query, eventID)
}

func (r *PostgresRepository) MarkSucceeded(ctx context.Context, eventID string) (*models.Job, error) {
	query := `
		UPDATE provision_jobs
		SET status = 'succeeded', last_error = '', updated_at = now(), finished_at = now()
		WHERE event_id = $1
		RETURNING ` + columns
	return r.one(ctx, query, eventID)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, eventID, reason string) (*models.Job, error) {
	query := `
		UPDATE provision_jobs
		SET status = 'failed', last_error = $2, updated_at = now(), finished_at = now()
		WHERE event_id = $1
		RETURNING ` + columns
	return r.one(ctx, query, eventID, reason)
}

func (r *PostgresRepository) Reset(ctx context.Context, eventID string) (*models.Job, error) {
	query := `
		UPDATE provision_jobs
		SET status = 'pending', attempts = 0, updated_at = now(), finished_at = NULL
		WHERE event_id = $1 AND status = 'failed'
		RETURNING ` + columns
	return r.one(ctx, query, eventID)
}

func (r *PostgresRepository) Stale(ctx context.Context, before time.Time, maxAttempts, limit int) ([]models.Job, error) {
	query := `
		SELECT ` + columns + `
		FROM provision_jobs
		WHERE attempts < $2
		  AND (status = 'failed' OR (status IN ('pending', 'running') AND updated_at < $1))
		ORDER BY updated_at
		LIMIT $3
	`
	return r.many(ctx, query, before, maxAttempts, limit)
}
