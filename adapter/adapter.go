// Package adapter publishes step completion notifications to downstream
// systems. Delivery is best-effort: a failed publish never changes the
// step outcome.
package adapter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/scriptrun/types"
)

// EventTypeStepCompleted is the only event type published.
const EventTypeStepCompleted = "step_completed"

// StepCompletedEvent is the payload published when a step finishes.
type StepCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"`
	EventID         string `json:"event_id"`
	BuildID         string `json:"build_id"`
	TaskID          string `json:"task_id,omitempty"`
	ProjectID       string `json:"project_id,omitempty"`
	Shell           string `json:"shell"`
	Status          string `json:"status"`
	ErrorCode       int    `json:"error_code,omitempty"`
	Outputs         int    `json:"outputs"`
	StoragePath     string `json:"storage_path,omitempty"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	DurationMs      int64  `json:"duration_ms"`
}

// NewStepCompletedEvent builds the event for a terminal result.
func NewStepCompletedEvent(r *types.StepResult, projectID string, now time.Time) *StepCompletedEvent {
	return &StepCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventTypeStepCompleted,
		EventID:         uuid.NewString(),
		BuildID:         r.BuildID,
		TaskID:          r.TaskID,
		ProjectID:       projectID,
		Shell:           r.Shell,
		Status:          string(r.Status),
		ErrorCode:       r.ErrorCode,
		Outputs:         len(r.Data),
		StoragePath:     r.StoragePath,
		Timestamp:       now.UTC().Format(time.RFC3339),
		DurationMs:      r.Duration.Milliseconds(),
	}
}

// Adapter publishes completion events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect ctx cancellation.
	Publish(ctx context.Context, event *StepCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the wait before retry attempt i (i >= 1).
func Backoff(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
}

// Retry runs fn up to 1+retries times, waiting Backoff(i) before each
// retry. stop reports errors that must not be retried.
func Retry(ctx context.Context, retries int, fn func() error, stop func(error) bool) (int, error) {
	attempts := 1 + retries
	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return i, ctx.Err()
			case <-time.After(Backoff(i)):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return i + 1, nil
		}
		if stop != nil && stop(lastErr) {
			return i + 1, lastErr
		}
	}
	return attempts, lastErr
}
