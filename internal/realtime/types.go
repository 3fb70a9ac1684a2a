// Package realtime streams published receipts to WebSocket clients.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/Praises003/aether/internal/receipts"
)

// MessageType represents the type of WebSocket message.
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePing        MessageType = "ping"

	MessageTypeConnected  MessageType = "connected"
	MessageTypeSubscribed MessageType = "subscribed"
	MessageTypeReceipt    MessageType = "receipt"
	MessageTypeError      MessageType = "error"
	MessageTypePong       MessageType = "pong"
)

// Message is the base WebSocket message structure.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload is the payload for subscribe messages. An empty JobID
// subscribes to every receipt.
type SubscribePayload struct {
	JobID string `json:"jobId,omitempty"`
}

// UnsubscribePayload is the payload for unsubscribe messages.
type UnsubscribePayload struct {
	SubscriptionID string `json:"subscription_id"`
}

// ConnectedPayload is the payload for connected messages.
type ConnectedPayload struct {
	ClientID string `json:"client_id"`
}

// SubscribedPayload confirms a subscription.
type SubscribedPayload struct {
	SubscriptionID string `json:"subscription_id"`
	JobID          string `json:"jobId,omitempty"`
}

// ReceiptPayload carries one receipt to the subscriptions it matched.
type ReceiptPayload struct {
	SubscriptionIDs []string         `json:"subscription_ids"`
	Receipt         receipts.Receipt `json:"receipt"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Subscription is one client's interest in receipts.
type Subscription struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	JobID     string    `json:"jobId,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSubscription creates a subscription from a subscribe payload.
func NewSubscription(clientID string, payload *SubscribePayload) *Subscription {
	return &Subscription{
		ClientID:  clientID,
		JobID:     payload.JobID,
		CreatedAt: time.Now(),
	}
}

// Matches reports whether r should be delivered to the subscription.
func (s *Subscription) Matches(r *receipts.Receipt) bool {
	return s.JobID == "" || s.JobID == r.JobID
}

// ErrorCode represents an error code for WebSocket errors.
type ErrorCode string

const (
	ErrorCodeInvalidMessage    ErrorCode = "INVALID_MESSAGE"
	ErrorCodeInvalidPayload    ErrorCode = "INVALID_PAYLOAD"
	ErrorCodeSubscriptionLimit ErrorCode = "SUBSCRIPTION_LIMIT_REACHED"
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
)
