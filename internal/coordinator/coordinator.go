// Package coordinator consumes the job topic and drives each job through
// payment verification, dispatch, result storage and receipt publication.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/dispatch"
	"github.com/Praises003/aether/internal/jobs"
	"github.com/Praises003/aether/internal/ledger"
	"github.com/Praises003/aether/internal/metrics"
	"github.com/Praises003/aether/internal/receipts"
	"github.com/Praises003/aether/internal/registry"
	"github.com/Praises003/aether/internal/results"
)

// ErrListenerDisabled is returned by Start when no job topic is configured.
var ErrListenerDisabled = errors.New("job listener disabled: no job topic configured")

// State is the final state a job reached.
type State string

const (
	StateMalformed     State = "MALFORMED"
	StatePaymentFailed State = "PAYMENT_FAILED"
	StateDispatchError State = "DISPATCH_ERROR"
	StateCompleted     State = "COMPLETED"
	StateError         State = "ERROR"
)

const (
	msgMissingPayment = "missing payment details"
	msgNotVerified    = "payment not verified"
)

// Functions resolves descriptors by identifier.
type Functions interface {
	Get(ctx context.Context, id string) (*registry.Descriptor, error)
}

// Verifier confirms that a transfer paid for a job.
type Verifier interface {
	Verify(ctx context.Context, transferRef, payee, priceHbar string) (bool, error)
}

// Executor runs a resolved function.
type Executor interface {
	ExecuteDescriptor(ctx context.Context, desc *registry.Descriptor, input json.RawMessage) dispatch.Outcome
}

// Publisher appends receipts to the receipt topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, r receipts.Receipt) bool
}

// Config holds listener settings.
type Config struct {
	JobTopic     string
	ReceiptTopic string
	StartTime    time.Time
	Workers      int
	QueueSize    int
}

// Deps are the collaborators a Coordinator drives.
type Deps struct {
	Subscriber ledger.Subscriber
	Functions  Functions
	Verifier   Verifier
	Executor   Executor
	Results    results.Store
	Publisher  Publisher
}

// Coordinator is the sole consumer of the job topic.
type Coordinator struct {
	cfg  Config
	deps Deps
}

// New creates a Coordinator.
func New(cfg Config, deps Deps) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return &Coordinator{cfg: cfg, deps: deps}
}

// Start subscribes to the job topic and processes messages on a bounded
// worker pool until ctx is cancelled. Jobs already running when ctx ends are
// allowed to finish; queued ones are left for redelivery.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.cfg.JobTopic == "" {
		log.Warn().Msg("Job topic not configured, listener disabled")
		return ErrListenerDisabled
	}

	queue := make(chan ledger.Message, c.cfg.QueueSize)

	var (
		mu     sync.RWMutex
		closed bool
	)
	enqueue := func(m ledger.Message) {
		metrics.RecordJobMessage()

		mu.RLock()
		defer mu.RUnlock()
		if closed {
			return
		}
		select {
		case queue <- m:
			metrics.SetJobsQueued(len(queue))
		case <-ctx.Done():
		}
	}

	var wg sync.WaitGroup
	for range c.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range queue {
				metrics.SetJobsQueued(len(queue))
				if ctx.Err() != nil {
					continue
				}
				c.Handle(context.WithoutCancel(ctx), m)
			}
		}()
	}

	log.Info().
		Str("topic", c.cfg.JobTopic).
		Time("start_time", c.cfg.StartTime).
		Int("workers", c.cfg.Workers).
		Int("queue_size", c.cfg.QueueSize).
		Msg("Job listener started")

	err := c.deps.Subscriber.Subscribe(ctx, c.cfg.JobTopic, c.cfg.StartTime, enqueue)

	mu.Lock()
	closed = true
	close(queue)
	mu.Unlock()
	wg.Wait()

	log.Info().Str("topic", c.cfg.JobTopic).Msg("Job listener stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("subscribing to job topic: %w", err)
	}
	return nil
}

// Handle runs one job to completion and returns the state it ended in.
// Errors and panics are contained here and converted into an ERROR receipt.
func (c *Coordinator) Handle(ctx context.Context, m ledger.Message) (state State) {
	started := time.Now()
	var job *jobs.Message

	defer func() {
		if r := recover(); r != nil {
			state = c.fail(ctx, job, fmt.Errorf("panic: %v", r))
		}
		metrics.RecordJob(string(state), time.Since(started))
	}()

	job, err := jobs.DecodeMessage(m.Contents)
	if err != nil {
		log.Warn().
			Err(err).
			Str("topic", m.Topic).
			Uint64("sequence", m.Sequence).
			Msg("Dropping malformed job message")
		return StateMalformed
	}

	state, err = c.process(ctx, job)
	if err != nil {
		return c.fail(ctx, job, err)
	}
	return state
}

func (c *Coordinator) process(ctx context.Context, job *jobs.Message) (State, error) {
	logger := log.With().
		Str("job_id", job.JobID).
		Str("function", job.FunctionIdentifier).
		Logger()

	logger.Debug().Msg("Job received")

	if !job.HasPaymentDetails() {
		logger.Warn().Msg("Job is missing payment details")
		c.publish(ctx, receipts.Receipt{
			JobID:              job.JobID,
			FunctionIdentifier: job.FunctionIdentifier,
			PayerAccount:       job.PayerAccount,
			Status:             receipts.StatusPaymentFailed,
			ErrorMessage:       msgMissingPayment,
		})
		return StatePaymentFailed, nil
	}

	desc, err := c.deps.Functions.Get(ctx, job.FunctionIdentifier)
	if err != nil && !errors.Is(err, registry.ErrNotFound) {
		return "", fmt.Errorf("looking up function: %w", err)
	}

	payee, price := job.PayeeAccount, job.ClaimedPriceUnits
	if desc != nil {
		payee, price = desc.PayeeAccount, desc.PriceHbar.String()
	}

	verified, err := c.deps.Verifier.Verify(ctx, job.TransferReference, payee, price)
	if err != nil {
		return "", err
	}
	if !verified {
		logger.Warn().
			Str("transfer", job.TransferReference).
			Str("payee", payee).
			Str("price_hbar", price).
			Msg("Payment not verified")
		c.publish(ctx, receipts.Receipt{
			JobID:              job.JobID,
			FunctionIdentifier: job.FunctionIdentifier,
			PayerAccount:       job.PayerAccount,
			PayeeAccount:       payee,
			Status:             receipts.StatusPaymentFailed,
			ErrorMessage:       msgNotVerified,
		})
		return StatePaymentFailed, nil
	}

	var outcome dispatch.Outcome
	if desc == nil {
		outcome = dispatch.UnknownFunction(job.FunctionIdentifier)
	} else {
		outcome = c.deps.Executor.ExecuteDescriptor(ctx, desc, job.Input)
	}

	if err := c.deps.Results.Put(ctx, job.JobID, outcome); err != nil {
		return "", fmt.Errorf("storing result: %w", err)
	}

	receipt := receipts.Receipt{
		JobID:              job.JobID,
		FunctionIdentifier: job.FunctionIdentifier,
		PayerAccount:       job.PayerAccount,
		PayeeAccount:       payee,
		Status:             receipts.StatusSuccess,
		Outcome:            &outcome,
	}
	state := StateCompleted
	if !outcome.Success {
		receipt.Status = receipts.StatusError
		receipt.ErrorMessage = outcome.ErrorMessage
		state = StateDispatchError
	}

	c.publish(ctx, receipt)

	logger.Info().
		Bool("success", outcome.Success).
		Str("state", string(state)).
		Msg("Job processed")

	return state, nil
}

// fail logs err and attempts an ERROR receipt for job. job is nil when the
// failure happened before the message was decoded.
func (c *Coordinator) fail(ctx context.Context, job *jobs.Message, err error) State {
	if job == nil || job.JobID == "" {
		log.Error().Err(err).Msg("Job processing failed before decoding")
		return StateError
	}

	log.Error().
		Err(err).
		Str("job_id", job.JobID).
		Str("function", job.FunctionIdentifier).
		Msg("Job processing failed")

	c.publish(ctx, receipts.Receipt{
		JobID:              job.JobID,
		FunctionIdentifier: job.FunctionIdentifier,
		PayerAccount:       job.PayerAccount,
		Status:             receipts.StatusError,
		ErrorMessage:       err.Error(),
	})
	return StateError
}

func (c *Coordinator) publish(ctx context.Context, r receipts.Receipt) {
	c.deps.Publisher.Publish(ctx, c.cfg.ReceiptTopic, r)
}
