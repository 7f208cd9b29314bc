package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newHTTPBackend(endpoint string) *HTTPBackend {
	return NewHTTPBackend(HTTPConfig{
		Endpoint: endpoint,
		Timeout:  time.Second,
		Attempts: 2,
	}, nil)
}

func TestHTTPDispatchOK(t *testing.T) {
	var got Message
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	msg := Message{DocumentID: uuid.New(), CompanyID: uuid.New(), Stage: "ocr"}
	res := newHTTPBackend(ts.URL).Dispatch(context.Background(), msg)

	if !res.OK() {
		t.Fatalf("status = %s, want %s", res.Status, StatusQueued)
	}
	if res.TaskID == "" {
		t.Error("task id missing")
	}
	if got != msg {
		t.Errorf("endpoint received %+v, want %+v", got, msg)
	}
}

func TestHTTPDispatchConnectionRefused(t *testing.T) {
	// Bind a port, then close it so the address is known-dead.
	ts := httptest.NewServer(http.NotFoundHandler())
	endpoint := ts.URL
	ts.Close()

	res := newHTTPBackend(endpoint).Dispatch(context.Background(), Message{DocumentID: uuid.New(), Stage: "ocr"})
	if res.Status != StatusServiceUnavailable {
		t.Errorf("status = %s, want %s", res.Status, StatusServiceUnavailable)
	}
	if res.OK() {
		t.Error("refused connection must not look dispatched")
	}
}

func TestHTTPDispatchServerErrorIsRetriedThenUnavailable(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	res := newHTTPBackend(ts.URL).Dispatch(context.Background(), Message{DocumentID: uuid.New(), Stage: "llm"})
	if res.Status != StatusServiceUnavailable {
		t.Errorf("status = %s, want %s", res.Status, StatusServiceUnavailable)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("endpoint called %d times, want one retry after a 503", got)
	}
}

func TestHTTPDispatchClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	res := newHTTPBackend(ts.URL).Dispatch(context.Background(), Message{DocumentID: uuid.New(), Stage: "structure"})
	if res.Status != StatusServiceError {
		t.Errorf("status = %s, want %s", res.Status, StatusServiceError)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("endpoint called %d times, a 400 must not be retried", got)
	}
}
