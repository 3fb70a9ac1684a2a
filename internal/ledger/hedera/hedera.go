// Package hedera implements the ledger transport on top of the Hedera SDK.
package hedera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdk "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/status"

	"github.com/Praises003/aether/internal/ledger"
)

// resubscribeDelay is the pause before re-establishing a dropped subscription.
const resubscribeDelay = 2 * time.Second

// ErrNoOperator is returned by operations that must sign a transaction.
var ErrNoOperator = errors.New("ledger operator not configured")

// Client implements ledger.Submitter and ledger.Subscriber.
type Client struct {
	client      *sdk.Client
	hasOperator bool
}

// New creates a client for network ("testnet", "mainnet" or "previewnet").
// operatorID and operatorKey may both be empty for subscribe-only use.
func New(network, operatorID, operatorKey string) (*Client, error) {
	client, err := sdk.ClientForName(network)
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", network, err)
	}

	c := &Client{client: client}
	if operatorID == "" {
		return c, nil
	}

	accountID, err := sdk.AccountIDFromString(operatorID)
	if err != nil {
		return nil, fmt.Errorf("parsing operator id: %w", err)
	}
	key, err := sdk.PrivateKeyFromString(operatorKey)
	if err != nil {
		return nil, fmt.Errorf("parsing operator key: %w", err)
	}
	client.SetOperator(accountID, key)
	c.hasOperator = true

	return c, nil
}

// Close releases the underlying network connections.
func (c *Client) Close() error {
	return c.client.Close()
}

// Submit appends data to topic and waits for the consensus receipt.
func (c *Client) Submit(ctx context.Context, topic string, data []byte) (ledger.SubmitResult, error) {
	if topic == "" {
		return ledger.SubmitResult{}, ledger.ErrNoTopic
	}
	if !c.hasOperator {
		return ledger.SubmitResult{}, ErrNoOperator
	}
	if err := ctx.Err(); err != nil {
		return ledger.SubmitResult{}, err
	}

	topicID, err := sdk.TopicIDFromString(topic)
	if err != nil {
		return ledger.SubmitResult{}, fmt.Errorf("parsing topic id: %w", err)
	}

	resp, err := sdk.NewTopicMessageSubmitTransaction().
		SetTopicID(topicID).
		SetMessage(data).
		Execute(c.client)
	if err != nil {
		return ledger.SubmitResult{}, fmt.Errorf("submitting message: %w", err)
	}

	receipt, err := resp.GetReceipt(c.client)
	result := ledger.SubmitResult{
		Status:   receipt.Status.String(),
		Sequence: receipt.TopicSequenceNumber,
	}
	if err != nil {
		return result, fmt.Errorf("getting receipt: %w", err)
	}
	return result, nil
}

// Subscribe streams topic messages from the mirror's gRPC API. A stream that
// ends or fails is re-established from the last delivered consensus time.
func (c *Client) Subscribe(ctx context.Context, topic string, from time.Time, fn func(ledger.Message)) error {
	if topic == "" {
		return ledger.ErrNoTopic
	}
	topicID, err := sdk.TopicIDFromString(topic)
	if err != nil {
		return fmt.Errorf("parsing topic id: %w", err)
	}

	var mu sync.Mutex
	last := from

	for {
		mu.Lock()
		start := last.Add(time.Nanosecond)
		mu.Unlock()

		ended := make(chan struct{})
		var once sync.Once
		end := func() { once.Do(func() { close(ended) }) }

		handle, err := sdk.NewTopicMessageQuery().
			SetTopicID(topicID).
			SetStartTime(start).
			SetCompletionHandler(end).
			SetErrorHandler(func(stat status.Status) {
				log.Warn().
					Str("topic", topic).
					Str("code", stat.Code().String()).
					Str("message", stat.Message()).
					Msg("Topic subscription failed")
				end()
			}).
			Subscribe(c.client, func(m sdk.TopicMessage) {
				mu.Lock()
				last = m.ConsensusTimestamp
				mu.Unlock()

				fn(ledger.Message{
					Topic:       topic,
					Sequence:    m.SequenceNumber,
					ConsensusAt: m.ConsensusTimestamp,
					Contents:    m.Contents,
				})
			})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}

		log.Debug().Str("topic", topic).Time("start", start).Msg("Subscribed to topic")

		select {
		case <-ctx.Done():
			handle.Unsubscribe()
			return nil
		case <-ended:
			handle.Unsubscribe()
		}

		log.Info().Str("topic", topic).Dur("delay", resubscribeDelay).Msg("Re-subscribing to topic")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(resubscribeDelay):
		}
	}
}

// CreateTopic creates a new topic administered by the operator key and
// returns its id.
func (c *Client) CreateTopic(ctx context.Context, memo string) (string, error) {
	if !c.hasOperator {
		return "", ErrNoOperator
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := sdk.NewTopicCreateTransaction().
		SetTopicMemo(memo).
		SetAdminKey(c.client.GetOperatorPublicKey()).
		Execute(c.client)
	if err != nil {
		return "", fmt.Errorf("creating topic: %w", err)
	}

	receipt, err := resp.GetReceipt(c.client)
	if err != nil {
		return "", fmt.Errorf("getting topic receipt: %w", err)
	}
	if receipt.TopicID == nil {
		return "", errors.New("receipt did not include a topic id")
	}
	return receipt.TopicID.String(), nil
}
