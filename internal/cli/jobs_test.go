package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Praises003/aether/internal/jobs"
)

// fakeBroker serves the job endpoints. The result for job-1 becomes
// available after pendingPolls lookups.
func fakeBroker(t *testing.T, pendingPolls int32) (*httptest.Server, *jobs.SubmitRequest) {
	t.Helper()

	var (
		submitted jobs.SubmitRequest
		polls     atomic.Int32
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if submitted.FunctionIdentifier == "REJECT_V1" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Job topic is not configured","code":"JOB_TOPIC_UNAVAILABLE"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"success":true,"message":"Job submitted","jobId":"job-1","nextStep":"/api/results/job-1"}`))
	})
	mux.HandleFunc("GET /api/results/{jobId}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.PathValue("jobId") != "job-1" || polls.Add(1) <= pendingPolls {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"completed","outcome":{"success":true,"output":"olleh","metadata":{}},"timestamp":"2026-01-02T03:04:05Z"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &submitted
}

func TestAPIClientSubmitAndWait(t *testing.T) {
	srv, submitted := fakeBroker(t, 2)
	client := newAPIClient(srv.URL + "/")

	resp, err := client.SubmitJob(context.Background(), jobs.SubmitRequest{
		FunctionIdentifier: "REVERSE_TEXT_V1",
		Input:              json.RawMessage(`"hello"`),
		PayerAccount:       "0.0.2002",
		TransferReference:  "0.0.2002@1700000000.000000001",
		ClaimedPriceUnits:  "0.05",
	})
	if err != nil {
		t.Fatalf("SubmitJob() error = %v", err)
	}
	if resp.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", resp.JobID)
	}
	if submitted.TransferReference != "0.0.2002@1700000000.000000001" {
		t.Errorf("server saw transferReference %q", submitted.TransferReference)
	}

	if _, err := client.Result(context.Background(), "job-1"); !errors.Is(err, errStillProcessing) {
		t.Errorf("Result() error = %v, want errStillProcessing", err)
	}

	res, err := client.WaitResult(context.Background(), "job-1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitResult() error = %v", err)
	}
	if !res.Completed() || res.Outcome == nil || !res.Outcome.Success {
		t.Errorf("unexpected result: %+v", res)
	}
	if string(res.Outcome.Output) != `"olleh"` {
		t.Errorf("output = %s", res.Outcome.Output)
	}
}

func TestAPIClientWaitTimesOut(t *testing.T) {
	srv, _ := fakeBroker(t, 1<<30)
	client := newAPIClient(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.WaitResult(ctx, "job-1", 10*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitResult() error = %v, want deadline exceeded", err)
	}
}

func TestAPIClientErrorResponse(t *testing.T) {
	srv, _ := fakeBroker(t, 0)
	client := newAPIClient(srv.URL)

	_, err := client.SubmitJob(context.Background(), jobs.SubmitRequest{FunctionIdentifier: "REJECT_V1"})
	if err == nil {
		t.Fatal("SubmitJob() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "JOB_TOPIC_UNAVAILABLE") {
		t.Errorf("error = %v, want the server's error code", err)
	}
}

func TestNewAPIClientServerURL(t *testing.T) {
	t.Setenv("AETHER_SERVER_URL", "http://broker.internal:9000/")

	if got := newAPIClient("").baseURL; got != "http://broker.internal:9000" {
		t.Errorf("baseURL from env = %q", got)
	}
	if got := newAPIClient("http://other:1").baseURL; got != "http://other:1" {
		t.Errorf("baseURL from flag = %q", got)
	}

	t.Setenv("AETHER_SERVER_URL", "")
	if got := newAPIClient("").baseURL; got != defaultServerURL {
		t.Errorf("default baseURL = %q", got)
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	inputFile := filepath.Join(dir, "input.json")
	if err := os.WriteFile(inputFile, []byte("{\"text\": \"hi\"}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input string
		file  string
		stdin string
		want  string
	}{
		{name: "json literal", input: `"hello"`, want: `"hello"`},
		{name: "plain text becomes a string", input: "hello world", want: `"hello world"`},
		{name: "file", file: inputFile, want: "{\"text\": \"hi\"}\n"},
		{name: "stdin", file: "-", stdin: "[1,2]", want: "[1,2]"},
		{name: "empty", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldInput, oldFile := submitInput, submitInputFile
			t.Cleanup(func() { submitInput, submitInputFile = oldInput, oldFile })
			submitInput, submitInputFile = tt.input, tt.file

			got, err := readInput(strings.NewReader(tt.stdin))
			if err != nil {
				t.Fatalf("readInput() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("readInput() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunSubmitValidatesLocally(t *testing.T) {
	oldInput := submitInput
	t.Cleanup(func() { submitInput = oldInput })
	submitInput = `"hello"`

	cmd, _ := testCommand()
	err := runSubmit(cmd, []string{"REVERSE_TEXT_V1"})
	if !errors.Is(err, jobs.ErrInvalidRequest) {
		t.Errorf("runSubmit() error = %v, want ErrInvalidRequest", err)
	}
}

func TestRunResultProcessing(t *testing.T) {
	srv, _ := fakeBroker(t, 1)

	oldURL := serverURL
	t.Cleanup(func() { serverURL = oldURL })
	serverURL = srv.URL

	cmd, out := testCommand()
	if err := runResult(cmd, []string{"job-1"}); err != nil {
		t.Fatalf("runResult() error = %v", err)
	}
	if !strings.Contains(out.String(), "still processing") {
		t.Errorf("first lookup output = %q", out.String())
	}

	cmd, out = testCommand()
	if err := runResult(cmd, []string{"job-1"}); err != nil {
		t.Fatalf("runResult() error = %v", err)
	}
	if !strings.Contains(out.String(), `"status": "completed"`) {
		t.Errorf("second lookup output = %q", out.String())
	}
}
