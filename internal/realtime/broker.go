package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/metrics"
	"github.com/Praises003/aether/internal/receipts"
)

// Broker fans published receipts out to WebSocket clients.
type Broker struct {
	clients       map[string]*Client
	subscriptions map[string]*Subscription
	index         *SubscriptionIndex
	maxClients    int

	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
	receiptCh chan receipts.Receipt
}

// BrokerConfig holds configuration for the broker.
type BrokerConfig struct {
	MaxConnections int
	BufferSize     int
}

// NewBroker creates a new receipt broker.
func NewBroker(cfg *BrokerConfig) *Broker {
	if cfg == nil {
		cfg = &BrokerConfig{
			MaxConnections: 1000,
			BufferSize:     1000,
		}
	}

	return &Broker{
		clients:       make(map[string]*Client),
		subscriptions: make(map[string]*Subscription),
		index:         NewSubscriptionIndex(),
		maxClients:    cfg.MaxConnections,
		done:          make(chan struct{}),
		receiptCh:     make(chan receipts.Receipt, cfg.BufferSize),
	}
}

// Start begins broadcasting receipts to subscribers.
func (b *Broker) Start(ctx context.Context) {
	go b.processReceipts(ctx)
}

// Stop closes every client connection.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		clients := make([]*Client, 0, len(b.clients))
		for _, client := range b.clients {
			clients = append(clients, client)
		}
		b.clients = make(map[string]*Client)
		b.subscriptions = make(map[string]*Subscription)
		b.index = NewSubscriptionIndex()
		b.mu.Unlock()

		for _, client := range clients {
			client.CloseWithoutUnsubscribe()
		}
		metrics.UpdateReceiptStreamClients(0)
	})
}

// Publish queues r for delivery. It never blocks; receipts are dropped when
// the buffer is full. It matches receipts.Observer.
func (b *Broker) Publish(r receipts.Receipt) {
	select {
	case b.receiptCh <- r:
	case <-b.done:
	default:
		log.Warn().Str("job_id", r.JobID).Msg("Receipt stream buffer full, dropping receipt")
	}
}

// RegisterClient adds a new client to the broker.
func (b *Broker) RegisterClient(client *Client) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return ErrBrokerStopped
	default:
	}

	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		return ErrTooManyClients
	}

	b.clients[client.ID] = client
	metrics.UpdateReceiptStreamClients(len(b.clients))
	log.Debug().Str("client_id", client.ID).Int("total_clients", len(b.clients)).Msg("Client connected")
	return nil
}

// UnregisterClient removes a client from the broker.
func (b *Broker) UnregisterClient(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	client, ok := b.clients[clientID]
	if !ok {
		return
	}

	for _, sub := range client.Subscriptions() {
		delete(b.subscriptions, sub.ID)
		b.index.Remove(sub)
	}

	delete(b.clients, clientID)
	metrics.UpdateReceiptStreamClients(len(b.clients))
	log.Debug().Str("client_id", clientID).Int("total_clients", len(b.clients)).Msg("Client disconnected")
}

// Subscribe registers sub for client.
func (b *Broker) Subscribe(client *Client, sub *Subscription) error {
	if err := client.AddSubscription(sub); err != nil {
		return err
	}

	b.mu.Lock()
	b.subscriptions[sub.ID] = sub
	b.index.Add(sub)
	b.mu.Unlock()

	log.Debug().
		Str("client_id", client.ID).
		Str("subscription_id", sub.ID).
		Str("job_id", sub.JobID).
		Msg("Receipt subscription created")

	return nil
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscriptions[subID]
	if !ok {
		return
	}
	delete(b.subscriptions, subID)
	b.index.Remove(sub)
}

func (b *Broker) processReceipts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case r := <-b.receiptCh:
			b.broadcast(&r)
		}
	}
}

func (b *Broker) broadcast(r *receipts.Receipt) {
	b.mu.RLock()
	candidates := b.index.GetCandidates(r.JobID)
	b.mu.RUnlock()

	byClient := make(map[string][]string)
	for _, sub := range candidates {
		if sub.Matches(r) {
			byClient[sub.ClientID] = append(byClient[sub.ClientID], sub.ID)
		}
	}

	for clientID, subIDs := range byClient {
		client := b.getClient(clientID)
		if client == nil {
			continue
		}

		payload, err := json.Marshal(&ReceiptPayload{
			SubscriptionIDs: subIDs,
			Receipt:         *r,
		})
		if err != nil {
			log.Error().Err(err).Str("job_id", r.JobID).Msg("Encoding receipt for stream failed")
			return
		}

		_ = client.Send(&Message{
			Type:    MessageTypeReceipt,
			Payload: payload,
		})
	}
}

func (b *Broker) getClient(clientID string) *Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.clients[clientID]
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Broker) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}
