// Package ledger defines the append-only topic transport used for jobs and
// receipts, plus helpers for ledger identifiers and amounts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// StatusSuccess is the status a submission reports once it is included in a topic.
const StatusSuccess = "SUCCESS"

// TinybarsPerHbar is the number of tinybar in one hbar.
const TinybarsPerHbar = 100_000_000

var (
	// ErrNoTopic is returned when a topic id is empty.
	ErrNoTopic = errors.New("topic not configured")

	// ErrInvalidTransactionID is returned by ParseTransactionID.
	ErrInvalidTransactionID = errors.New("invalid transaction id")
)

// Message is a single message delivered from a topic.
type Message struct {
	Topic       string
	Sequence    uint64
	ConsensusAt time.Time
	Contents    []byte
}

// SubmitResult is the inclusion acknowledgement for a submitted message.
type SubmitResult struct {
	Status   string
	Sequence uint64
}

// OK reports whether the submission was accepted.
func (r SubmitResult) OK() bool {
	return r.Status == StatusSuccess
}

// Subscriber delivers topic messages with consensus time strictly after from.
// Subscribe blocks until ctx is cancelled or the subscription cannot continue.
// fn is called sequentially from a single goroutine.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, from time.Time, fn func(Message)) error
}

// Submitter appends a message to a topic and waits for its acknowledgement.
type Submitter interface {
	Submit(ctx context.Context, topic string, data []byte) (SubmitResult, error)
}

// ParseTransactionID converts a transaction id in wallet form
// ("0.0.100@1700000000.000000001") to the mirror form
// ("0.0.100-1700000000-000000001").
func ParseTransactionID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	account, validStart, ok := strings.Cut(ref, "@")
	if !ok || account == "" || validStart == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionID, ref)
	}
	if !isEntityID(account) {
		return "", fmt.Errorf("%w: bad account %q", ErrInvalidTransactionID, account)
	}
	secs, nanos, ok := strings.Cut(validStart, ".")
	if !ok || !isDigits(secs) || !isDigits(nanos) {
		return "", fmt.Errorf("%w: bad valid start %q", ErrInvalidTransactionID, validStart)
	}
	return account + "-" + secs + "-" + nanos, nil
}

// HbarToTinybar converts a decimal hbar amount to tinybar, rounding any
// sub-tinybar remainder up so a required amount is never understated.
func HbarToTinybar(hbar string) (int64, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(hbar))
	if !ok {
		return 0, fmt.Errorf("invalid hbar amount %q", hbar)
	}
	if r.Sign() < 0 {
		return 0, fmt.Errorf("negative hbar amount %q", hbar)
	}
	r.Mul(r, big.NewRat(TinybarsPerHbar, 1))

	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsInt64() {
		return 0, fmt.Errorf("hbar amount %q out of range", hbar)
	}
	return q.Int64(), nil
}

// FormatTimestamp renders t in the mirror's "seconds.nanoseconds" form.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%09d", t.Unix(), t.Nanosecond())
}

// ParseTimestamp parses a mirror "seconds.nanoseconds" timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	secs, nanos, _ := strings.Cut(s, ".")
	if !isDigits(secs) || (nanos != "" && !isDigits(nanos)) {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	var nsec int64
	if nanos != "" {
		nanos = (nanos + "000000000")[:9]
		nsec, _ = strconv.ParseInt(nanos, 10, 64)
	}
	return time.Unix(sec, nsec).UTC(), nil
}

func isEntityID(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if !isDigits(p) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
