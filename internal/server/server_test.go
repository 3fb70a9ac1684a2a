package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Praises003/aether/internal/config"
	"github.com/Praises003/aether/internal/database"
	"github.com/Praises003/aether/internal/dispatch"
	"github.com/Praises003/aether/internal/jobs"
	"github.com/Praises003/aether/internal/ledger/local"
	"github.com/Praises003/aether/internal/realtime"
	"github.com/Praises003/aether/internal/receipts"
	"github.com/Praises003/aether/internal/registry"
	"github.com/Praises003/aether/internal/results"
)

const jobTopic = "0.0.1001"

type testEnv struct {
	srv     *Server
	log     *local.Log
	results *results.MemoryStore
	broker  *realtime.Broker
}

func setupTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	if mutate != nil {
		mutate(cfg)
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ledgerLog := local.New(db, 10*time.Millisecond)
	store := results.NewMemoryStore(time.Hour)
	broker := realtime.NewBroker(nil)

	srv := New(cfg,
		jobs.NewService(ledgerLog, jobTopic, store),
		registry.NewSQLiteStore(db),
		WithDatabase(db),
		WithBroker(broker),
		WithVersion("test"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	broker.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = srv.Shutdown(context.Background())
	})

	return &testEnv{srv: srv, log: ledgerLog, results: store, broker: broker}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", w.Body.String(), err)
	}
	return body
}

const validJob = `{
	"functionIdentifier": "REVERSE_TEXT_V1",
	"input": "hello",
	"payerAccount": "0.0.100",
	"transferReference": "0.0.100@1700000000.000000001",
	"claimedPriceUnits": "0.1"
}`

func TestSubmitJob(t *testing.T) {
	env := setupTestServer(t, nil)

	w := env.do(t, http.MethodPost, "/api/jobs", validJob)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	jobID, _ := body["jobId"].(string)
	if !strings.HasPrefix(jobID, "job-") {
		t.Errorf("unexpected job id %q", jobID)
	}

	msgs, err := env.log.Messages(context.Background(), jobTopic)
	if err != nil {
		t.Fatalf("reading job topic: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 job message, got %d", len(msgs))
	}

	m, err := jobs.DecodeMessage(msgs[0].Contents)
	if err != nil {
		t.Fatalf("decoding appended message: %v", err)
	}
	if m.JobID != jobID {
		t.Errorf("appended job id %q does not match response %q", m.JobID, jobID)
	}
}

func TestSubmitJob_Invalid(t *testing.T) {
	env := setupTestServer(t, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty body", "", "BAD_REQUEST"},
		{"not json", "{", "BAD_REQUEST"},
		{"missing fields", `{"functionIdentifier":"X","input":"a"}`, "INVALID_JOB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/jobs", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if got := decodeBody(t, w)["code"]; got != tt.code {
				t.Errorf("expected code %s, got %v", tt.code, got)
			}
		})
	}
}

func TestSubmitJob_RateLimited(t *testing.T) {
	env := setupTestServer(t, func(cfg *config.Config) {
		cfg.Server.SubmitRateLimit = config.RateLimitRule{Max: 1, Window: time.Minute}
	})

	if w := env.do(t, http.MethodPost, "/api/jobs", validJob); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/jobs", validJob); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/results/job-x", ""); w.Code != http.StatusNotFound {
		t.Errorf("result polling should not be rate limited, got %d", w.Code)
	}
}

func TestGetResult(t *testing.T) {
	env := setupTestServer(t, nil)

	w := env.do(t, http.MethodGet, "/api/results/job-1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != jobs.StatusProcessing {
		t.Errorf("expected processing, got %v", got)
	}

	err := env.results.Put(context.Background(), "job-1", dispatch.Outcome{
		Success: true,
		Output:  json.RawMessage(`"olleh"`),
	})
	if err != nil {
		t.Fatalf("storing result: %v", err)
	}

	w = env.do(t, http.MethodGet, "/api/results/job-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != jobs.StatusCompleted {
		t.Errorf("expected completed, got %v", body["status"])
	}
	outcome, _ := body["outcome"].(map[string]any)
	if outcome["output"] != "olleh" {
		t.Errorf("unexpected outcome %v", outcome)
	}
	if body["timestamp"] == nil {
		t.Error("expected a timestamp")
	}
}

func TestFunctionRoutes(t *testing.T) {
	env := setupTestServer(t, nil)

	w := env.do(t, http.MethodGet, "/api/functions", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/functions", `{
		"functionIdentifier": "weather_v1",
		"name": "<b>Weather</b>",
		"executionType": "API",
		"endpointUrl": "https://api.example.com/weather",
		"priceHbar": 0.5,
		"providerAccountId": "0.0.200"
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	if created["functionIdentifier"] != "WEATHER_V1" {
		t.Errorf("identifier not normalized: %v", created["functionIdentifier"])
	}
	if created["name"] != "Weather" {
		t.Errorf("name not sanitized: %v", created["name"])
	}
	if created["executionType"] != "REMOTE" {
		t.Errorf("API alias not mapped: %v", created["executionType"])
	}

	w = env.do(t, http.MethodGet, "/api/functions/weather_v1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/functions/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/functions", `{"functionIdentifier":"bad_v1","executionType":"REMOTE","providerAccountId":"0.0.1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for REMOTE without endpoint, got %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t, nil)

	w := env.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "healthy" || body["version"] != "test" {
		t.Errorf("unexpected health body %v", body)
	}

	w = env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "aether_http_requests_total") {
		t.Error("expected aether metrics in output")
	}
}

func TestReceiptStream(t *testing.T) {
	env := setupTestServer(t, nil)

	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/receipts/stream?jobId=job-7"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://localhost:5173"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() realtime.Message {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg realtime.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != realtime.MessageTypeConnected {
		t.Fatalf("expected connected, got %s", msg.Type)
	}
	if msg := read(); msg.Type != realtime.MessageTypeSubscribed {
		t.Fatalf("expected subscribed, got %s", msg.Type)
	}

	env.broker.Publish(receipts.Receipt{JobID: "job-7", Status: receipts.StatusSuccess})

	msg := read()
	if msg.Type != realtime.MessageTypeReceipt {
		t.Fatalf("expected receipt, got %s", msg.Type)
	}
	var payload realtime.ReceiptPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Receipt.JobID != "job-7" {
		t.Errorf("unexpected receipt %+v", payload.Receipt)
	}
}
