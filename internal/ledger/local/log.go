// Package local implements the ledger transport as an append-only topic log
// in the SQLite database, for development and tests.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/database"
	"github.com/Praises003/aether/internal/ledger"
)

const (
	// firstTopicNum keeps local topic ids clear of system entity numbers.
	firstTopicNum = 1000
	pageSize      = 100
)

// Log is a SQLite-backed topic log implementing ledger.Submitter and
// ledger.Subscriber. Topics need not be created before use.
type Log struct {
	db           *database.DB
	pollInterval time.Duration

	mu       sync.Mutex
	appended chan struct{}
}

// New creates a topic log over db.
func New(db *database.DB, pollInterval time.Duration) *Log {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Log{
		db:           db,
		pollInterval: pollInterval,
		appended:     make(chan struct{}),
	}
}

// Submit appends data to topic. Consensus time is strictly increasing per topic.
func (l *Log) Submit(ctx context.Context, topic string, data []byte) (ledger.SubmitResult, error) {
	if topic == "" {
		return ledger.SubmitResult{}, ledger.ErrNoTopic
	}

	var seq uint64
	err := l.db.Transaction(ctx, func(tx *database.Tx) error {
		var lastSeq, lastNS int64
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(sequence_number), 0), COALESCE(MAX(consensus_ns), 0)
			FROM topic_messages WHERE topic_id = ?
		`, topic).Scan(&lastSeq, &lastNS)
		if err != nil {
			return fmt.Errorf("reading topic head: %w", err)
		}

		ns := time.Now().UnixNano()
		if ns <= lastNS {
			ns = lastNS + 1
		}
		seq = uint64(lastSeq + 1)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO topic_messages (topic_id, sequence_number, consensus_ns, contents)
			VALUES (?, ?, ?, ?)
		`, topic, seq, ns, data)
		if err != nil {
			return fmt.Errorf("appending message: %w", database.ClassifyError(err))
		}
		return nil
	})
	if err != nil {
		return ledger.SubmitResult{}, err
	}

	l.notify()

	log.Debug().Str("topic", topic).Uint64("sequence", seq).Msg("Appended topic message")

	return ledger.SubmitResult{Status: ledger.StatusSuccess, Sequence: seq}, nil
}

// Subscribe delivers messages with consensus time after from until ctx is
// cancelled. New appends wake subscribers immediately; the poll interval
// covers writers in other processes.
func (l *Log) Subscribe(ctx context.Context, topic string, from time.Time, fn func(ledger.Message)) error {
	if topic == "" {
		return ledger.ErrNoTopic
	}

	cursor := from.UnixNano()
	if from.IsZero() {
		cursor = 0
	}

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		wake := l.waitCh()

		next, err := l.deliverAll(ctx, topic, cursor, fn)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("topic", topic).Msg("Reading topic log failed")
		}
		cursor = next

		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-ticker.C:
		}
	}
}

// Messages returns every message of topic in sequence order.
func (l *Log) Messages(ctx context.Context, topic string) ([]ledger.Message, error) {
	var msgs []ledger.Message
	_, err := l.deliverAll(ctx, topic, 0, func(m ledger.Message) { msgs = append(msgs, m) })
	return msgs, err
}

// CreateTopic allocates a new topic id.
func (l *Log) CreateTopic(ctx context.Context, memo string) (string, error) {
	var topicID string
	err := l.db.Transaction(ctx, func(tx *database.Tx) error {
		var num int64
		err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(num), 0) FROM topics`).Scan(&num)
		if err != nil {
			return fmt.Errorf("reading topics: %w", err)
		}
		if num < firstTopicNum {
			num = firstTopicNum
		}
		num++
		topicID = fmt.Sprintf("0.0.%d", num)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO topics (num, topic_id, memo, created_at) VALUES (?, ?, ?, ?)
		`, num, topicID, memo, database.Now())
		if err != nil {
			return fmt.Errorf("inserting topic: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Info().Str("topic", topicID).Str("memo", memo).Msg("Created local topic")
	return topicID, nil
}

// deliverAll pages through messages after cursor and returns the new cursor.
func (l *Log) deliverAll(ctx context.Context, topic string, cursor int64, fn func(ledger.Message)) (int64, error) {
	for {
		page, err := l.page(ctx, topic, cursor)
		if err != nil {
			return cursor, err
		}
		for _, m := range page {
			cursor = m.ConsensusAt.UnixNano()
			fn(m)
		}
		if len(page) < pageSize {
			return cursor, nil
		}
	}
}

func (l *Log) page(ctx context.Context, topic string, cursor int64) ([]ledger.Message, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT sequence_number, consensus_ns, contents
		FROM topic_messages
		WHERE topic_id = ? AND consensus_ns > ?
		ORDER BY consensus_ns ASC
		LIMIT ?
	`, topic, cursor, pageSize)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []ledger.Message
	for rows.Next() {
		var (
			seq      int64
			ns       int64
			contents []byte
		)
		if err := rows.Scan(&seq, &ns, &contents); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, ledger.Message{
			Topic:       topic,
			Sequence:    uint64(seq),
			ConsensusAt: time.Unix(0, ns).UTC(),
			Contents:    contents,
		})
	}
	return msgs, rows.Err()
}

func (l *Log) waitCh() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appended
}

func (l *Log) notify() {
	l.mu.Lock()
	defer l.mu.Unlock()
	close(l.appended)
	l.appended = make(chan struct{})
}
