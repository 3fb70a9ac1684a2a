// Package receipts publishes job receipts to the receipt topic.
package receipts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/dispatch"
	"github.com/Praises003/aether/internal/ledger"
	"github.com/Praises003/aether/internal/metrics"
)

// Status is the final state reported in a receipt.
type Status string

const (
	StatusSuccess       Status = "SUCCESS"
	StatusPaymentFailed Status = "PAYMENT_FAILED"
	StatusError         Status = "ERROR"
)

// Receipt is the public record of one processed job.
type Receipt struct {
	JobID              string            `json:"jobId"`
	FunctionIdentifier string            `json:"functionIdentifier,omitempty"`
	PayerAccount       string            `json:"payerAccount,omitempty"`
	PayeeAccount       string            `json:"payeeAccount,omitempty"`
	Status             Status            `json:"status"`
	Outcome            *dispatch.Outcome `json:"outcome"`
	ErrorMessage       string            `json:"errorMessage,omitempty"`
	Timestamp          time.Time         `json:"timestamp"`
}

// Observer is notified of every receipt accepted by the ledger.
type Observer func(Receipt)

// Publisher submits receipts. Publishing is best effort: one attempt, and
// failures are logged rather than returned.
type Publisher struct {
	submitter ledger.Submitter

	mu        sync.RWMutex
	observers []Observer
}

func NewPublisher(submitter ledger.Submitter) *Publisher {
	return &Publisher{submitter: submitter}
}

// Observe registers fn to receive published receipts.
func (p *Publisher) Observe(fn Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Publish submits r to topic and reports whether the ledger accepted it.
// A zero Timestamp is set to the current time.
func (p *Publisher) Publish(ctx context.Context, topic string, r Receipt) bool {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	logger := log.With().
		Str("job_id", r.JobID).
		Str("status", string(r.Status)).
		Str("topic", topic).
		Logger()

	if topic == "" {
		logger.Warn().Msg("Receipt topic not configured, receipt dropped")
		metrics.RecordReceipt(string(r.Status), "skipped")
		return false
	}

	data, err := json.Marshal(r)
	if err != nil {
		logger.Error().Err(err).Msg("Encoding receipt failed")
		metrics.RecordReceipt(string(r.Status), "failed")
		return false
	}

	res, err := p.submitter.Submit(ctx, topic, data)
	if err != nil {
		logger.Error().Err(err).Str("ledger_status", res.Status).Msg("Publishing receipt failed")
		metrics.RecordReceipt(string(r.Status), "failed")
		return false
	}
	if !res.OK() {
		logger.Error().Str("ledger_status", res.Status).Msg("Receipt rejected by ledger")
		metrics.RecordReceipt(string(r.Status), "failed")
		return false
	}

	logger.Info().Uint64("sequence", res.Sequence).Msg("Receipt published")
	metrics.RecordReceipt(string(r.Status), "published")

	p.mu.RLock()
	observers := p.observers
	p.mu.RUnlock()
	for _, fn := range observers {
		fn(r)
	}

	return true
}
