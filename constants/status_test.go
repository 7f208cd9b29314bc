package constants

import "testing"

func TestStepIndex(t *testing.T) {
	tests := []struct {
		status DocumentStatus
		want   int
	}{
		{StatusPreprocessing, 1},
		{StatusErrorProcessing, 1},
		{StatusOCRExtracting, 2},
		{StatusLLMPredicting, 3},
		{StatusDataExtracting, 4},
		{StatusScanEvaluating, 5},
		{StatusCompleted, 6},
		{StatusManualReview, 6},
		{DocumentStatus("bogus"), 1},
	}
	for _, tt := range tests {
		if got := StepIndex(tt.status); got != tt.want {
			t.Errorf("StepIndex(%s) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(StatusCompleted); got != 100 {
		t.Errorf("Percentage(completed) = %d, want 100", got)
	}
	if got := Percentage(StatusLLMPredicting); got != 50 {
		t.Errorf("Percentage(llm_predicting) = %d, want 50", got)
	}
}

func TestIsErrorAndTerminal(t *testing.T) {
	errs := []DocumentStatus{
		StatusErrorProcessing, StatusErrorOCR, StatusErrorLLM,
		StatusErrorDataExtraction, StatusErrorEvaluation,
	}
	for _, s := range errs {
		if !IsError(s) {
			t.Errorf("IsError(%s) = false", s)
		}
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, errors are restartable", s)
		}
	}
	if IsError(StatusCompleted) {
		t.Error("IsError(completed) = true")
	}
	if !IsTerminal(StatusCompleted) || !IsTerminal(StatusManualReview) {
		t.Error("completed and manual_review are terminal")
	}
}

func TestDescribeFallsBackToRawStatus(t *testing.T) {
	if got := Describe(DocumentStatus("weird")); got != "weird" {
		t.Errorf("Describe(weird) = %q", got)
	}
	if got := Describe(StatusManualReview); got == string(StatusManualReview) {
		t.Error("known status should have a human description")
	}
}

func TestMapExtToFormat(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"pdf", PDF},
		{"jpg", IMAGE},
		{"jpeg", IMAGE},
		{"png", IMAGE},
		{"tif", IMAGE},
		{"tiff", IMAGE},
		{"docx", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MapExtToFormat(tt.ext); got != tt.want {
			t.Errorf("MapExtToFormat(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestNormalizeExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{".PDF", "pdf"},
		{"JPG", "jpg"},
		{".jpeg", "jpeg"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeExt(tt.in); got != tt.want {
			t.Errorf("NormalizeExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
