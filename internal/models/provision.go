package models

import "time"

// ProvisionTask asks the provisioner to create the registration and sponsor
// sub-collections of a freshly created event.
type ProvisionTask struct {
	EventID     string    `json:"event_id"`
	EventName   string    `json:"event_name"`
	OwnerID     string    `json:"owner_id"`
	Sponsors    []Sponsor `json:"sponsors"`
	RequestedAt time.Time `json:"requested_at"`
}

// Provisioning job states.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// ProvisionOutcome reports how a provisioning job ended.
type ProvisionOutcome struct {
	EventID    string    `json:"event_id"`
	JobID      string    `json:"job_id"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
