package models

import (
	"time"

	"github.com/dmitrijs2005/secnexus/internal/models"
)

// Job is a ledger row: one provisioning job per event.
type Job struct {
	ID         string           `json:"id"`
	EventID    string           `json:"event_id"`
	EventName  string           `json:"event_name"`
	OwnerID    string           `json:"owner_id"`
	Sponsors   []models.Sponsor `json:"sponsors"`
	Status     string           `json:"status"`
	Attempts   int              `json:"attempts"`
	LastError  string           `json:"last_error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// Task rebuilds the provisioning task the job was created from.
func (j *Job) Task() models.ProvisionTask {
	return models.ProvisionTask{
		EventID:     j.EventID,
		EventName:   j.EventName,
		OwnerID:     j.OwnerID,
		Sponsors:    j.Sponsors,
		RequestedAt: j.CreatedAt,
	}
}

// Outcome describes the job as published on the outcome subjects.
func (j *Job) Outcome() models.ProvisionOutcome {
	o := models.ProvisionOutcome{
		EventID:  j.EventID,
		JobID:    j.ID,
		Status:   j.Status,
		Attempts: j.Attempts,
		Error:    j.LastError,
	}
	if j.FinishedAt != nil {
		o.FinishedAt = *j.FinishedAt
	} else {
		o.FinishedAt = j.UpdatedAt
	}
	return o
}
