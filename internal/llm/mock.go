package llm

import (
	"context"
	"encoding/json"
)

// MockExtractor is a FieldExtractor for tests.
type MockExtractor struct {
	Raw        json.RawMessage
	Confidence float64
	Err        error

	Calls int
}

func (m *MockExtractor) ExtractFields(_ context.Context, _ ExtractRequest) (ExtractResult, error) {
	m.Calls++
	if m.Err != nil {
		return ExtractResult{}, m.Err
	}
	return ExtractResult{Raw: m.Raw, Confidence: m.Confidence}, nil
}
