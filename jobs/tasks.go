// Package jobs hosts the asynq task types and background workers.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeBalanceScan reconciles open batches against their lots.
	TaskTypeBalanceScan = "intake:balance_scan"
)

// BalanceScanPayload scopes a balance scan. A zero PackhouseID scans all
// packhouses.
type BalanceScanPayload struct {
	PackhouseID int64 `json:"packhouse_id,omitempty"`
}

// NewBalanceScanTask constructs the asynq task for a balance scan.
func NewBalanceScanTask(payload BalanceScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBalanceScan, data), nil
}
