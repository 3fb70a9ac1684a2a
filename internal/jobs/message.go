// Package jobs defines the job message carried on the job topic and the
// submission service that appends new jobs and answers result polls.
package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformed is returned by DecodeMessage for messages the listener drops.
var ErrMalformed = errors.New("malformed job message")

// Message is the JSON document appended to the job topic.
type Message struct {
	JobID              string          `json:"jobId"`
	FunctionIdentifier string          `json:"functionIdentifier"`
	Input              json.RawMessage `json:"input"`
	TransferReference  string          `json:"transferReference,omitempty"`
	PayerAccount       string          `json:"payerAccount,omitempty"`
	ClaimedPriceUnits  string          `json:"claimedPriceUnits,omitempty"`
	PayeeAccount       string          `json:"payeeAccount,omitempty"`
	SubmittedAt        time.Time       `json:"submittedAt"`
}

// wireMessage accepts both the current field names and the ones used by
// older clients (transferTxId, userAccountId, priceHbar, providerAccountId).
type wireMessage struct {
	JobID              string          `json:"jobId"`
	FunctionIdentifier string          `json:"functionIdentifier"`
	Input              json.RawMessage `json:"input"`
	TransferReference  string          `json:"transferReference"`
	TransferTxID       string          `json:"transferTxId"`
	PayerAccount       string          `json:"payerAccount"`
	UserAccountID      string          `json:"userAccountId"`
	ClaimedPriceUnits  decimal         `json:"claimedPriceUnits"`
	PriceHbar          decimal         `json:"priceHbar"`
	PayeeAccount       string          `json:"payeeAccount"`
	ProviderAccountID  string          `json:"providerAccountId"`
	SubmittedAt        string          `json:"submittedAt"`
}

// decimal decodes either a JSON number or a JSON string.
type decimal string

func (d *decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*d = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = decimal(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("price must be a number or string: %w", err)
		}
		*d = decimal(n.String())
	}
	return nil
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	*m = Message{
		JobID:              strings.TrimSpace(w.JobID),
		FunctionIdentifier: strings.TrimSpace(w.FunctionIdentifier),
		Input:              w.Input,
		TransferReference:  firstNonEmpty(w.TransferReference, w.TransferTxID),
		PayerAccount:       firstNonEmpty(w.PayerAccount, w.UserAccountID),
		ClaimedPriceUnits:  firstNonEmpty(string(w.ClaimedPriceUnits), string(w.PriceHbar)),
		PayeeAccount:       firstNonEmpty(w.PayeeAccount, w.ProviderAccountID),
	}
	if w.SubmittedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, w.SubmittedAt); err == nil {
			m.SubmittedAt = t
		}
	}
	return nil
}

// DecodeMessage parses a job topic message. Messages that are not JSON or
// lack jobId, functionIdentifier or input return ErrMalformed.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch {
	case m.JobID == "":
		return &m, fmt.Errorf("%w: missing jobId", ErrMalformed)
	case m.FunctionIdentifier == "":
		return &m, fmt.Errorf("%w: missing functionIdentifier", ErrMalformed)
	case isNull(m.Input):
		return &m, fmt.Errorf("%w: missing input", ErrMalformed)
	}
	return &m, nil
}

// HasPaymentDetails reports whether the message names a transfer, a payer
// and a price.
func (m *Message) HasPaymentDetails() bool {
	return m.TransferReference != "" && m.PayerAccount != "" && m.ClaimedPriceUnits != ""
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
