package handlers

import (
	"errors"
	"net/http"

	"github.com/Praises003/aether/internal/jobs"
	"github.com/Praises003/aether/internal/ledger"
	"github.com/Praises003/aether/internal/requestctx"
)

// SubmitJobResponse acknowledges an appended job.
type SubmitJobResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	JobID    string `json:"jobId"`
	NextStep string `json:"nextStep"`
}

// ResultResponse is the body of GET /api/results/{jobId}.
type ResultResponse struct {
	*jobs.Result
	Message string `json:"message,omitempty"`
}

// SubmitJob handles POST /api/jobs.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	jobID, err := h.jobs.Submit(r.Context(), req)
	switch {
	case errors.Is(err, jobs.ErrInvalidRequest):
		Error(w, http.StatusBadRequest, "INVALID_JOB", err.Error())
		return
	case errors.Is(err, ledger.ErrNoTopic):
		Error(w, http.StatusServiceUnavailable, "JOB_TOPIC_UNAVAILABLE", "Job topic is not configured")
		return
	case err != nil:
		requestctx.Logger(r.Context()).Error().Err(err).Str("function", req.FunctionIdentifier).Msg("Failed to submit job")
		Error(w, http.StatusBadGateway, "SUBMIT_FAILED", "Failed to submit job to the ledger")
		return
	}

	JSON(w, http.StatusAccepted, SubmitJobResponse{
		Success:  true,
		Message:  "Job submitted to the job topic",
		JobID:    jobID,
		NextStep: "poll /api/results/" + jobID,
	})
}

// GetResult handles GET /api/results/{jobId}. A job without a result yet
// answers 404 with status "processing".
func (h *Handlers) GetResult(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		BadRequest(w, "jobId is required")
		return
	}

	res, err := h.jobs.Result(r.Context(), jobID)
	if err != nil {
		requestctx.Logger(r.Context()).Error().Err(err).Str("job_id", jobID).Msg("Failed to read job result")
		InternalError(w, "Failed to check job result")
		return
	}

	if !res.Completed() {
		JSON(w, http.StatusNotFound, ResultResponse{
			Result:  res,
			Message: "Job still processing",
		})
		return
	}

	JSON(w, http.StatusOK, ResultResponse{Result: res})
}
