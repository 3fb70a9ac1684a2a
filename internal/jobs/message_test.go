package jobs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	data := []byte(`{
		"jobId": "job-1",
		"functionIdentifier": "REVERSE_TEXT_V1",
		"input": "hello",
		"transferReference": "0.0.100@1700000000.000000001",
		"payerAccount": "0.0.100",
		"claimedPriceUnits": "0.5",
		"submittedAt": "2026-01-02T03:04:05Z",
		"extra": true
	}`)

	m, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "job-1", m.JobID)
	assert.Equal(t, "REVERSE_TEXT_V1", m.FunctionIdentifier)
	assert.JSONEq(t, `"hello"`, string(m.Input))
	assert.Equal(t, "0.0.100@1700000000.000000001", m.TransferReference)
	assert.Equal(t, "0.0.100", m.PayerAccount)
	assert.Equal(t, "0.5", m.ClaimedPriceUnits)
	assert.True(t, m.SubmittedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.True(t, m.HasPaymentDetails())
}

func TestDecodeMessage_LegacyFieldNames(t *testing.T) {
	data := []byte(`{
		"jobId": "job-2",
		"functionIdentifier": "TEXT_SUMMARIZER_V1",
		"input": {"text": "a b c"},
		"transferTxId": "0.0.100@1700000000.000000001",
		"userAccountId": "0.0.100",
		"priceHbar": 1.25,
		"providerAccountId": "0.0.200"
	}`)

	m, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "0.0.100@1700000000.000000001", m.TransferReference)
	assert.Equal(t, "0.0.100", m.PayerAccount)
	assert.Equal(t, "1.25", m.ClaimedPriceUnits)
	assert.Equal(t, "0.0.200", m.PayeeAccount)
	assert.True(t, m.SubmittedAt.IsZero())
}

func TestDecodeMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `hello`},
		{"missing job id", `{"functionIdentifier":"X","input":1}`},
		{"missing function", `{"jobId":"j","input":1}`},
		{"missing input", `{"jobId":"j","functionIdentifier":"X"}`},
		{"null input", `{"jobId":"j","functionIdentifier":"X","input":null}`},
		{"bad price type", `{"jobId":"j","functionIdentifier":"X","input":1,"priceHbar":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestMessage_MissingPaymentDetails(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"jobId":"j","functionIdentifier":"X","input":"a","payerAccount":"0.0.1"}`))
	require.NoError(t, err)
	assert.False(t, m.HasPaymentDetails())
}

func TestMessage_EncodesCurrentNames(t *testing.T) {
	data, err := json.Marshal(Message{
		JobID:              "job-3",
		FunctionIdentifier: "X",
		Input:              json.RawMessage(`1`),
		TransferReference:  "0.0.1@1.2",
		PayerAccount:       "0.0.1",
		ClaimedPriceUnits:  "2",
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "0.0.1@1.2", raw["transferReference"])
	assert.Equal(t, "2", raw["claimedPriceUnits"])
	assert.NotContains(t, raw, "transferTxId")
}
