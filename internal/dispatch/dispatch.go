// Package dispatch hands a document off to its next pipeline stage. The
// mechanism is pluggable: a synchronous local HTTP call, a durable
// SQLite-backed topic with at-least-once delivery, or an in-process mock.
// One backend is selected at process start and never mixed with another.
package dispatch

import (
	"context"

	"github.com/google/uuid"
)

// Message is the wire format shared by all backends.
type Message struct {
	DocumentID uuid.UUID `json:"document_id"`
	CompanyID  uuid.UUID `json:"company_id"`
	Stage      string    `json:"stage"`
}

// Status classifies a dispatch outcome. Failures are data, not errors: the
// calling stage decides whether a failed dispatch marks the document failed
// or proceeds degraded.
type Status string

const (
	StatusQueued             Status = "queued"
	StatusServiceUnavailable Status = "service_unavailable"
	StatusServiceError       Status = "service_error"
)

// Result is the uniform outcome shape returned by every backend.
type Result struct {
	TaskID string `json:"task_id"`
	Status Status `json:"status"`
}

// OK reports whether the message was accepted.
func (r Result) OK() bool { return r.Status == StatusQueued }

// Backend dispatches a stage message. Implementations never block longer
// than their configured timeout and never panic across the call.
type Backend interface {
	Dispatch(ctx context.Context, msg Message) Result
}
