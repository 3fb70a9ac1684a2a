package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
	pongTimeout      = 60 * time.Second
	maxMessageSize   = 16 * 1024
	maxSubscriptions = 32
	sendBufferSize   = 64
)

// Client is a connected receipt stream consumer.
type Client struct {
	ID string

	conn          *websocket.Conn
	broker        *Broker
	subscriptions map[string]*Subscription
	mu            sync.RWMutex
	sendCh        chan []byte
	done          chan struct{}
	closeOnce     sync.Once
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewClient creates a new WebSocket client.
func NewClient(conn *websocket.Conn, broker *Broker) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:            uuid.New().String(),
		conn:          conn,
		broker:        broker,
		subscriptions: make(map[string]*Subscription),
		sendCh:        make(chan []byte, sendBufferSize),
		done:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Run serves the connection until either side closes it.
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
}

// Close drops the client's subscriptions and closes the connection.
func (c *Client) Close() {
	c.shutdown(true, websocket.StatusNormalClosure, "closing")
}

// CloseWithoutUnsubscribe closes the connection without touching the
// broker. The broker calls it during Stop while it owns its own state.
func (c *Client) CloseWithoutUnsubscribe() {
	c.shutdown(false, websocket.StatusGoingAway, "server shutting down")
}

func (c *Client) shutdown(unsubscribe bool, status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()

		c.mu.Lock()
		subs := c.subscriptions
		c.subscriptions = make(map[string]*Subscription)
		c.mu.Unlock()

		if unsubscribe {
			for id := range subs {
				c.broker.Unsubscribe(id)
			}
		}

		_ = c.conn.Close(status, reason)
	})
}

// Send queues a message. A full buffer drops the message rather than
// stalling the broadcaster.
func (c *Client) Send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return context.Canceled
	default:
	}

	select {
	case c.sendCh <- data:
	default:
		log.Warn().Str("client_id", c.ID).Str("type", string(msg.Type)).Msg("Client send buffer full, dropping message")
	}
	return nil
}

// SendError reports a failed request back to the client.
func (c *Client) SendError(msgID string, code ErrorCode, message string) error {
	return c.reply(msgID, MessageTypeError, &ErrorPayload{Code: string(code), Message: message})
}

// SendConnected greets the client with its id.
func (c *Client) SendConnected() error {
	return c.reply("", MessageTypeConnected, &ConnectedPayload{ClientID: c.ID})
}

func (c *Client) reply(msgID string, typ MessageType, payload any) error {
	msg := &Message{ID: msgID, Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = data
	}
	return c.Send(msg)
}

// Subscribe registers interest in receipts for jobID, or in every receipt
// when jobID is empty, and confirms it to the client.
func (c *Client) Subscribe(msgID, jobID string) (*Subscription, error) {
	sub := NewSubscription(c.ID, &SubscribePayload{JobID: jobID})
	sub.ID = uuid.New().String()

	if err := c.broker.Subscribe(c, sub); err != nil {
		return nil, err
	}

	_ = c.reply(msgID, MessageTypeSubscribed, &SubscribedPayload{SubscriptionID: sub.ID, JobID: sub.JobID})
	return sub, nil
}

// AddSubscription records a subscription on the client.
func (c *Client) AddSubscription(sub *Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subscriptions) >= maxSubscriptions {
		return ErrSubscriptionLimit
	}

	c.subscriptions[sub.ID] = sub
	return nil
}

// RemoveSubscription removes a subscription from this client.
func (c *Client) RemoveSubscription(subID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, subID)
}

// Subscriptions returns all subscriptions for this client.
func (c *Client) Subscriptions() []*Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subs := make([]*Subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	return subs
}

func (c *Client) readLoop() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("Receipt stream read failed")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.SendError("", ErrorCodeInvalidMessage, "Invalid JSON message")
			continue
		}
		c.handleMessage(&msg)
	}
}

// writeLoop owns every write on the connection: queued messages and the
// keepalive ping.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err = c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, pongTimeout)
			err = c.conn.Ping(ctx)
			cancel()
		}
		if err != nil {
			log.Debug().Err(err).Str("client_id", c.ID).Msg("Receipt stream write failed")
			c.Close()
			return
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg)
	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case MessageTypePing:
		_ = c.reply(msg.ID, MessageTypePong, nil)
	default:
		_ = c.SendError(msg.ID, ErrorCodeInvalidMessage, "Unknown message type")
	}
}

func (c *Client) handleSubscribe(msg *Message) {
	var payload SubscribePayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			_ = c.SendError(msg.ID, ErrorCodeInvalidPayload, "Invalid subscribe payload")
			return
		}
	}

	if _, err := c.Subscribe(msg.ID, payload.JobID); err != nil {
		code := ErrorCodeInternalError
		if errors.Is(err, ErrSubscriptionLimit) {
			code = ErrorCodeSubscriptionLimit
		}
		_ = c.SendError(msg.ID, code, err.Error())
	}
}

func (c *Client) handleUnsubscribe(msg *Message) {
	var payload UnsubscribePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		_ = c.SendError(msg.ID, ErrorCodeInvalidPayload, "Invalid unsubscribe payload")
		return
	}

	if payload.SubscriptionID == "" {
		_ = c.SendError(msg.ID, ErrorCodeInvalidPayload, "Subscription ID is required")
		return
	}

	c.broker.Unsubscribe(payload.SubscriptionID)
	c.RemoveSubscription(payload.SubscriptionID)
}
