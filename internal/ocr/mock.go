package ocr

import "context"

// MockExtractor is a TextExtractor for tests.
type MockExtractor struct {
	Text       string
	Confidence float64
	Err        error

	Calls int
}

func (m *MockExtractor) Extract(_ context.Context, _ []byte, _ string) (Result, error) {
	m.Calls++
	if m.Err != nil {
		return Result{}, m.Err
	}
	return Result{
		Text:       m.Text,
		Pages:      1,
		Method:     "mock",
		Confidence: m.Confidence,
	}, nil
}
