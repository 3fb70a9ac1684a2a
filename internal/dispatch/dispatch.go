// Package dispatch runs functions either in-process or against a remote
// HTTP endpoint and normalizes every result into an Outcome.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/metrics"
	"github.com/Praises003/aether/internal/registry"
)

// DefaultTimeout bounds remote calls when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Handler is an in-process function. The returned value is encoded as JSON.
type Handler func(ctx context.Context, input json.RawMessage) (any, error)

// Metadata is passed through from the descriptor on every outcome.
type Metadata struct {
	DocsURL string `json:"docsUrl,omitempty"`
}

// Outcome is the normalized result of one execution.
type Outcome struct {
	Success      bool            `json:"success"`
	Output       json.RawMessage `json:"output"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Metadata     Metadata        `json:"metadata"`
}

// Functions resolves descriptors by identifier.
type Functions interface {
	Get(ctx context.Context, id string) (*registry.Descriptor, error)
}

// Dispatcher executes functions. It never returns an error: every failure
// becomes an unsuccessful Outcome.
type Dispatcher struct {
	functions Functions
	handlers  map[string]Handler
	remote    *remoteInvoker
}

// New creates a dispatcher with the given local handlers, keyed by
// function identifier.
func New(functions Functions, handlers map[string]Handler, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	normalized := make(map[string]Handler, len(handlers))
	for id, h := range handlers {
		normalized[registry.NormalizeID(id)] = h
	}

	return &Dispatcher{
		functions: functions,
		handlers:  normalized,
		remote:    newRemoteInvoker(timeout),
	}
}

// Execute looks up id and runs it with input.
func (d *Dispatcher) Execute(ctx context.Context, id string, input json.RawMessage) Outcome {
	desc, err := d.functions.Get(ctx, id)
	if errors.Is(err, registry.ErrNotFound) {
		return UnknownFunction(id)
	}
	if err != nil {
		return failure(fmt.Sprintf("looking up function %s: %v", registry.NormalizeID(id), err))
	}
	return d.ExecuteDescriptor(ctx, desc, input)
}

// ExecuteDescriptor runs an already resolved descriptor.
func (d *Dispatcher) ExecuteDescriptor(ctx context.Context, desc *registry.Descriptor, input json.RawMessage) Outcome {
	start := time.Now()

	var (
		out  Outcome
		kind string
	)
	switch target := desc.Target().(type) {
	case registry.LocalTarget:
		kind = "local"
		out = d.runLocal(ctx, desc.Identifier, input)
	case registry.RemoteTarget:
		kind = "remote"
		out = d.remote.invoke(ctx, target, input)
	default:
		kind = "unknown"
		out = failure(fmt.Sprintf("unsupported execution type %q for %s", desc.ExecutionType, desc.Identifier))
	}

	out.Metadata.DocsURL = desc.DocsURL
	metrics.RecordDispatch(kind, out.Success, time.Since(start))

	log.Debug().
		Str("function", desc.Identifier).
		Str("target", kind).
		Bool("success", out.Success).
		Dur("duration", time.Since(start)).
		Msg("Function executed")

	return out
}

// UnknownFunction is the outcome for an identifier with no descriptor.
func UnknownFunction(id string) Outcome {
	return failure("unknown function identifier: " + registry.NormalizeID(id))
}

func (d *Dispatcher) runLocal(ctx context.Context, id string, input json.RawMessage) (out Outcome) {
	h, ok := d.handlers[id]
	if !ok {
		return failure("no local handler registered for " + id)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("function", id).Msg("Local handler panicked")
			out = failure(fmt.Sprintf("local handler panicked: %v", r))
		}
	}()

	result, err := h(ctx, input)
	if err != nil {
		return failure(err.Error())
	}

	data, err := json.Marshal(result)
	if err != nil {
		return failure(fmt.Sprintf("encoding handler output: %v", err))
	}
	return Outcome{Success: true, Output: data}
}

func failure(msg string) Outcome {
	return Outcome{
		Success:      false,
		Output:       json.RawMessage("null"),
		ErrorMessage: msg,
	}
}
