// Package results stores job outcomes until clients poll for them.
package results

import (
	"context"
	"errors"
	"time"

	"github.com/Praises003/aether/internal/dispatch"
)

// ErrNotFound is returned when no result is stored for a job.
var ErrNotFound = errors.New("result not found")

// Entry is a stored job outcome.
type Entry struct {
	JobID      string           `json:"jobId"`
	Outcome    dispatch.Outcome `json:"outcome"`
	RecordedAt time.Time        `json:"recordedAt"`
}

// Store is safe for concurrent use. Put overwrites any existing entry.
type Store interface {
	Put(ctx context.Context, jobID string, outcome dispatch.Outcome) error
	Get(ctx context.Context, jobID string) (*Entry, error)
	Delete(ctx context.Context, jobID string) error
}
