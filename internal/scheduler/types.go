// Package scheduler submits deferred wake-ups and runs the periodic sweep
// that replays work the external scheduler never delivered.
//
// Two Scheduler backends exist: HTTPScheduler publishes to a delay-queue
// HTTP API, and SQSScheduler chains SQS delay hops consumed by the wake-up
// relay. Both end at the same signed wake-up endpoints.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotInFuture is returned when a job's fire time is not after now.
var ErrNotInFuture = errors.New("scheduler: fire time is not in the future")

// Job is one deferred callback: POST Body to CallbackURL at FireAt.
type Job struct {
	CallbackURL string
	Body        []byte
	FireAt      time.Time
}

// Scheduler submits jobs and returns the backend's job identifier.
type Scheduler interface {
	Schedule(ctx context.Context, job Job) (string, error)
}

// CallbackURL joins the public API base and a wake-up path.
func CallbackURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// TaskType selects which sweep an EventBridge invocation runs.
type TaskType string

const (
	TaskSweepAll      TaskType = "sweep_all"
	TaskSweepOverdue  TaskType = "sweep_overdue"
	TaskSweepRenewals TaskType = "sweep_renewals"
)

// SweepPayload is the EventBridge input for cmd/sweeper:
//
//	{"task": "sweep_overdue", "reference_time": "2026-05-01T09:00:00Z"}
//
// An empty task runs every sweep. ReferenceTime overrides now for manual
// backfills.
type SweepPayload struct {
	Task          TaskType   `json:"task,omitempty"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}
