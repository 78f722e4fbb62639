package domain

import "time"

type JobState string

const (
	JobPending JobState = "pending"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// JobStatus is the progress record of an asynchronous categorization.
type JobStatus struct {
	ID        string                  `json:"id"`
	SKU       string                  `json:"sku"`
	State     JobState                `json:"state"`
	Result    *CategorizationResponse `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`
}
