package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/realtime"
)

// ReceiptStreamHandler upgrades clients to the receipt WebSocket stream.
type ReceiptStreamHandler struct {
	broker         *realtime.Broker
	originPatterns []string
}

// NewReceiptStreamHandler creates a handler that accepts cross-origin
// connections from allowedOrigins (full origins such as
// "http://localhost:5173", or "*").
func NewReceiptStreamHandler(broker *realtime.Broker, allowedOrigins []string) *ReceiptStreamHandler {
	return &ReceiptStreamHandler{broker: broker, originPatterns: originHosts(allowedOrigins)}
}

// originHosts converts origins to the host patterns the websocket library
// matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}

// HandleWebSocket handles GET /api/receipts/stream. With ?jobId= the client
// is subscribed to that job immediately.
func (h *ReceiptStreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to accept WebSocket connection")
		return
	}

	client := realtime.NewClient(conn, h.broker)
	if err := h.broker.RegisterClient(client); err != nil {
		status := websocket.StatusTryAgainLater
		if errors.Is(err, realtime.ErrBrokerStopped) {
			status = websocket.StatusGoingAway
		}
		_ = conn.Close(status, err.Error())
		return
	}
	defer h.broker.UnregisterClient(client.ID)

	_ = client.SendConnected()

	if jobID := r.URL.Query().Get("jobId"); jobID != "" {
		if _, err := client.Subscribe("", jobID); err != nil {
			_ = client.SendError("", realtime.ErrorCodeInternalError, err.Error())
		}
	}

	client.Run()
}
