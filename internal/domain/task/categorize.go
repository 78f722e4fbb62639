package task

import "marketplace/categorizer/internal/domain"

const (
	CategorizeTaskType      = "CategorizeTask"
	CategorizeRetryTaskType = "CategorizeRetryTask"
)

type CategorizeTask struct {
	JobID             string         `json:"job_id"`
	Product           domain.Product `json:"product"`
	Marketplace       string         `json:"marketplace,omitempty"` // empty means every marketplace
	IncludeConfidence bool           `json:"include_confidence"`
}

func (t *CategorizeTask) TaskType() string {
	return CategorizeTaskType
}

func (t *CategorizeTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}

// CategorizeRetryTask carries a job whose result could not be stored.
type CategorizeRetryTask struct {
	CategorizeTask
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error"` // Error message from the last failure
}

func (t *CategorizeRetryTask) TaskType() string {
	return CategorizeRetryTaskType
}

func (t *CategorizeRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
