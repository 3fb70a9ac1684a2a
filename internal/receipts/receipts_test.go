package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praises003/aether/internal/dispatch"
	"github.com/Praises003/aether/internal/ledger"
)

type recordingSubmitter struct {
	mu     sync.Mutex
	topics []string
	msgs   [][]byte
	result ledger.SubmitResult
	err    error
}

func (s *recordingSubmitter) Submit(_ context.Context, topic string, data []byte) (ledger.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	s.msgs = append(s.msgs, data)
	return s.result, s.err
}

func TestPublish_Success(t *testing.T) {
	sub := &recordingSubmitter{result: ledger.SubmitResult{Status: ledger.StatusSuccess, Sequence: 7}}
	p := NewPublisher(sub)

	var observed []Receipt
	p.Observe(func(r Receipt) { observed = append(observed, r) })

	out := dispatch.Outcome{Success: true, Output: json.RawMessage(`"olleh"`)}
	ok := p.Publish(context.Background(), "0.0.7002", Receipt{
		JobID:              "job-1",
		FunctionIdentifier: "REVERSE_TEXT_V1",
		PayerAccount:       "0.0.100",
		Status:             StatusSuccess,
		Outcome:            &out,
	})
	require.True(t, ok)

	require.Len(t, sub.msgs, 1)
	assert.Equal(t, "0.0.7002", sub.topics[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(sub.msgs[0], &decoded))
	assert.Equal(t, "job-1", decoded["jobId"])
	assert.Equal(t, "SUCCESS", decoded["status"])
	assert.Equal(t, "olleh", decoded["outcome"].(map[string]any)["output"])
	assert.NotEmpty(t, decoded["timestamp"])

	require.Len(t, observed, 1)
	assert.Equal(t, "job-1", observed[0].JobID)
}

func TestPublish_PaymentFailedHasNullOutcome(t *testing.T) {
	sub := &recordingSubmitter{result: ledger.SubmitResult{Status: ledger.StatusSuccess}}
	p := NewPublisher(sub)

	require.True(t, p.Publish(context.Background(), "0.0.7002", Receipt{
		JobID:        "job-2",
		Status:       StatusPaymentFailed,
		ErrorMessage: "payment not verified",
	}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(sub.msgs[0], &decoded))
	assert.Nil(t, decoded["outcome"])
	assert.Equal(t, "payment not verified", decoded["errorMessage"])
}

func TestPublish_Failures(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		sub   *recordingSubmitter
		calls int
	}{
		{"missing topic", "", &recordingSubmitter{}, 0},
		{"transport error", "0.0.7002", &recordingSubmitter{err: errors.New("connection reset")}, 1},
		{"rejected", "0.0.7002", &recordingSubmitter{result: ledger.SubmitResult{Status: "INVALID_TOPIC_ID"}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPublisher(tt.sub)
			observed := 0
			p.Observe(func(Receipt) { observed++ })

			ok := p.Publish(context.Background(), tt.topic, Receipt{JobID: "job-3", Status: StatusError})
			assert.False(t, ok)
			assert.Len(t, tt.sub.msgs, tt.calls, "exactly one attempt, no retries")
			assert.Zero(t, observed)
		})
	}
}
