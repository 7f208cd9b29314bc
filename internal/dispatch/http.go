package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// HTTPBackend POSTs the stage message to a fixed local endpoint with a
// short timeout. Connection failures and timeouts come back as
// service_unavailable results; the backend itself only retries briefly and
// never blocks beyond its budget.
type HTTPBackend struct {
	endpoint string
	client   *http.Client
	attempts uint
	logger   *slog.Logger
}

// HTTPConfig configures the synchronous backend.
type HTTPConfig struct {
	Endpoint string        // e.g. http://127.0.0.1:8080/internal/pipeline/stage
	Timeout  time.Duration // per-request budget, default 5s
	Attempts uint          // bounded retry on transport errors, default 3
}

func NewHTTPBackend(cfg HTTPConfig, logger *slog.Logger) *HTTPBackend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	return &HTTPBackend{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		attempts: cfg.Attempts,
		logger:   logger,
	}
}

func (b *HTTPBackend) Dispatch(ctx context.Context, msg Message) Result {
	taskID := uuid.New().String()
	body, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("dispatch.http.encode_failed", "task_id", taskID, "error", err)
		return Result{TaskID: taskID, Status: StatusServiceError}
	}

	var lastStatus int
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := b.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
			lastStatus = resp.StatusCode
			if resp.StatusCode/100 == 2 {
				return nil
			}
			if resp.StatusCode/100 == 5 {
				return fmt.Errorf("stage endpoint returned %d", resp.StatusCode)
			}
			return retry.Unrecoverable(fmt.Errorf("stage endpoint returned %d", resp.StatusCode))
		},
		retry.Context(ctx),
		retry.Attempts(b.attempts),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		status := StatusServiceUnavailable
		if lastStatus != 0 && lastStatus/100 != 5 {
			status = StatusServiceError
		}
		b.logger.Warn("dispatch.http.failed",
			"task_id", taskID, "stage", msg.Stage, "document_id", msg.DocumentID,
			"http_status", lastStatus, "error", err)
		return Result{TaskID: taskID, Status: status}
	}

	b.logger.Debug("dispatch.http.ok", "task_id", taskID, "stage", msg.Stage, "document_id", msg.DocumentID)
	return Result{TaskID: taskID, Status: StatusQueued}
}
