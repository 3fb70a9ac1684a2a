package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/dispatch"
	"github.com/Praises003/aether/internal/ledger"
	"github.com/Praises003/aether/internal/results"
)

// ErrInvalidRequest is returned by Submit when a required field is missing.
var ErrInvalidRequest = errors.New("invalid job request")

// Result statuses reported to pollers.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// SubmitRequest is a client's request to run a function. It accepts the same
// field aliases as Message.
type SubmitRequest struct {
	FunctionIdentifier string          `json:"functionIdentifier"`
	Input              json.RawMessage `json:"input"`
	PayerAccount       string          `json:"payerAccount"`
	TransferReference  string          `json:"transferReference"`
	ClaimedPriceUnits  string          `json:"claimedPriceUnits"`
	PayeeAccount       string          `json:"payeeAccount,omitempty"`
}

func (r *SubmitRequest) UnmarshalJSON(b []byte) error {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*r = SubmitRequest{
		FunctionIdentifier: m.FunctionIdentifier,
		Input:              m.Input,
		PayerAccount:       m.PayerAccount,
		TransferReference:  m.TransferReference,
		ClaimedPriceUnits:  m.ClaimedPriceUnits,
		PayeeAccount:       m.PayeeAccount,
	}
	return nil
}

// Validate checks that every required field is present.
func (r *SubmitRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.FunctionIdentifier) == "" {
		missing = append(missing, "functionIdentifier")
	}
	if isNull(r.Input) {
		missing = append(missing, "input")
	}
	if strings.TrimSpace(r.PayerAccount) == "" {
		missing = append(missing, "payerAccount")
	}
	if strings.TrimSpace(r.TransferReference) == "" {
		missing = append(missing, "transferReference")
	}
	if strings.TrimSpace(r.ClaimedPriceUnits) == "" {
		missing = append(missing, "claimedPriceUnits")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	if _, err := ledger.HbarToTinybar(r.ClaimedPriceUnits); err != nil {
		return fmt.Errorf("%w: claimedPriceUnits must be a non-negative number", ErrInvalidRequest)
	}
	return nil
}

// Result is what a poller sees for a job.
type Result struct {
	Status    string            `json:"status"`
	Outcome   *dispatch.Outcome `json:"outcome,omitempty"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
}

// Completed reports whether the job has a stored outcome.
func (r *Result) Completed() bool {
	return r.Status == StatusCompleted
}

// Service appends jobs to the job topic and reads results back.
type Service struct {
	submitter ledger.Submitter
	topic     string
	results   results.Store
	now       func() time.Time
}

// NewService creates a submission service that appends to topic.
func NewService(submitter ledger.Submitter, topic string, store results.Store) *Service {
	return &Service{
		submitter: submitter,
		topic:     topic,
		results:   store,
		now:       time.Now,
	}
}

// Submit validates req, assigns a job id and appends the job message. It
// returns once the ledger has accepted the message; the job itself runs
// asynchronously.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if s.topic == "" {
		return "", ledger.ErrNoTopic
	}

	msg := Message{
		JobID:              "job-" + uuid.New().String(),
		FunctionIdentifier: strings.TrimSpace(req.FunctionIdentifier),
		Input:              req.Input,
		TransferReference:  strings.TrimSpace(req.TransferReference),
		PayerAccount:       strings.TrimSpace(req.PayerAccount),
		ClaimedPriceUnits:  strings.TrimSpace(req.ClaimedPriceUnits),
		PayeeAccount:       strings.TrimSpace(req.PayeeAccount),
		SubmittedAt:        s.now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding job message: %w", err)
	}

	res, err := s.submitter.Submit(ctx, s.topic, data)
	if err != nil {
		return "", fmt.Errorf("appending job message: %w", err)
	}
	if !res.OK() {
		return "", fmt.Errorf("job topic rejected message: %s", res.Status)
	}

	log.Info().
		Str("job_id", msg.JobID).
		Str("function", msg.FunctionIdentifier).
		Str("topic", s.topic).
		Uint64("sequence", res.Sequence).
		Msg("Job submitted")

	return msg.JobID, nil
}

// Result returns the job's status. A job without a stored outcome is
// reported as processing.
func (s *Service) Result(ctx context.Context, jobID string) (*Result, error) {
	entry, err := s.results.Get(ctx, jobID)
	if errors.Is(err, results.ErrNotFound) {
		return &Result{Status: StatusProcessing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}

	ts := entry.RecordedAt
	return &Result{
		Status:    StatusCompleted,
		Outcome:   &entry.Outcome,
		Timestamp: &ts,
	}, nil
}
