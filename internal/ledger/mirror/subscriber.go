package mirror

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/ledger"
)

const pageSize = 100

// Subscriber polls the topic messages endpoint and implements ledger.Subscriber.
type Subscriber struct {
	client   *Client
	interval time.Duration
}

// NewSubscriber creates a polling subscriber.
func NewSubscriber(client *Client, interval time.Duration) *Subscriber {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Subscriber{client: client, interval: interval}
}

// Subscribe polls until ctx is cancelled. Poll failures are logged and the
// next poll resumes from the last delivered consensus timestamp.
func (s *Subscriber) Subscribe(ctx context.Context, topic string, from time.Time, fn func(ledger.Message)) error {
	if topic == "" {
		return ledger.ErrNoTopic
	}

	cursor := ledger.FormatTimestamp(from)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		cursor = s.drain(ctx, topic, cursor, fn)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// drain delivers every available page and returns the advanced cursor.
func (s *Subscriber) drain(ctx context.Context, topic, cursor string, fn func(ledger.Message)) string {
	for ctx.Err() == nil {
		msgs, err := s.client.TopicMessages(ctx, topic, cursor, pageSize)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("topic", topic).Msg("Polling topic messages failed")
			}
			return cursor
		}

		for _, m := range msgs {
			cursor = m.ConsensusTimestamp

			contents, err := m.Contents()
			if err != nil {
				log.Warn().Err(err).Str("topic", topic).Uint64("sequence", m.SequenceNumber).Msg("Skipping undecodable topic message")
				continue
			}
			at, _ := ledger.ParseTimestamp(m.ConsensusTimestamp)

			fn(ledger.Message{
				Topic:       topic,
				Sequence:    m.SequenceNumber,
				ConsensusAt: at,
				Contents:    contents,
			})
		}

		if len(msgs) < pageSize {
			return cursor
		}
	}
	return cursor
}
