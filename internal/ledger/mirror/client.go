// Package mirror is a client for the ledger's read-side REST index.
package mirror

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the mirror has no record of the entity.
	ErrNotFound = errors.New("not found on mirror")
)

// StatusError is returned for non-2xx responses other than 404.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Temporary reports whether the failure is on the mirror's side.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Transfer is one hbar transfer line of a transaction.
type Transfer struct {
	Account    string `json:"account"`
	Amount     int64  `json:"amount"`
	IsApproval bool   `json:"is_approval"`
}

// Transaction is the subset of a mirror transaction record the broker uses.
type Transaction struct {
	TransactionID      string     `json:"transaction_id"`
	ConsensusTimestamp string     `json:"consensus_timestamp"`
	Name               string     `json:"name"`
	Result             string     `json:"result"`
	Transfers          []Transfer `json:"transfers"`
}

// Covers reports whether a single transfer line credits account with at
// least tinybar. Split credits do not add up.
func (t *Transaction) Covers(account string, tinybar int64) bool {
	for _, tr := range t.Transfers {
		if tr.Account == account && tr.Amount >= tinybar {
			return true
		}
	}
	return false
}

type transactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// TopicMessage is a single message from the topic messages endpoint.
type TopicMessage struct {
	TopicID            string `json:"topic_id"`
	SequenceNumber     uint64 `json:"sequence_number"`
	ConsensusTimestamp string `json:"consensus_timestamp"`
	Message            string `json:"message"`
}

// Contents decodes the base64 message body.
func (m *TopicMessage) Contents() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.Message)
}

type topicMessagesResponse struct {
	Messages []TopicMessage `json:"messages"`
	Links    struct {
		Next string `json:"next"`
	} `json:"links"`
}

// Client talks to a mirror node REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL, e.g. https://testnet.mirrornode.hedera.com.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Transaction fetches the first record for a transaction id in mirror form
// ("0.0.100-1700000000-000000001").
func (c *Client) Transaction(ctx context.Context, id string) (*Transaction, error) {
	var resp transactionsResponse
	if err := c.get(ctx, "/api/v1/transactions/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Transactions) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Transactions[0], nil
}

// TopicMessages returns up to limit messages of topic with consensus time
// strictly after the given mirror timestamp, oldest first.
func (c *Client) TopicMessages(ctx context.Context, topic, after string, limit int) ([]TopicMessage, error) {
	q := url.Values{}
	q.Set("order", "asc")
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if after != "" {
		q.Set("timestamp", "gt:"+after)
	}

	var resp topicMessagesResponse
	err := c.get(ctx, "/api/v1/topics/"+url.PathEscape(topic)+"/messages", q, &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("topic %s: %w", topic, err)
	}
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
