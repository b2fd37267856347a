// Package state records the stage-run history of workspace sessions in
// SQLite. Datasets themselves are never persisted.
package state

import (
	"context"
	"time"
)

// Status is the outcome of one stage invocation.
type Status string

// Stage run statuses.
const (
	// StatusSuccess means the stage ran and the store was updated.
	StatusSuccess Status = "success"
	// StatusRejected means a precondition or parameter check failed
	// before anything ran.
	StatusRejected Status = "rejected"
	// StatusFailed means a collaborator or the stage itself failed.
	StatusFailed Status = "failed"
)

// StageRun is one recorded stage invocation.
type StageRun struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"session_id"`
	Stage          string        `json:"stage"`
	Status         Status        `json:"status"`
	Message        string        `json:"message,omitempty"`
	Params         string        `json:"params,omitempty"`
	DatasetsBefore int           `json:"datasets_before"`
	DatasetsAfter  int           `json:"datasets_after"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	SessionID string
	Stage     string
	Limit     int
}

// History stores stage runs.
type History interface {
	Record(ctx context.Context, run *StageRun) error
	List(ctx context.Context, f Filter) ([]*StageRun, error)
	Get(ctx context.Context, id string) (*StageRun, error)
	Close() error
}

var _ History = (*SQLiteStore)(nil)
