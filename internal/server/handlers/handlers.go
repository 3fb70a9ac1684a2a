// Package handlers implements the HTTP endpoints for job submission, result
// polling, the function registry and the receipt stream.
package handlers

import (
	"context"
	"net/http"

	"github.com/Praises003/aether/internal/jobs"
	"github.com/Praises003/aether/internal/registry"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// JobService submits jobs and reports their results.
type JobService interface {
	Submit(ctx context.Context, req jobs.SubmitRequest) (string, error)
	Result(ctx context.Context, jobID string) (*jobs.Result, error)
}

type Handlers struct {
	jobs      JobService
	functions registry.Store
}

func New(jobService JobService, functions registry.Store) *Handlers {
	return &Handlers{
		jobs:      jobService,
		functions: functions,
	}
}
