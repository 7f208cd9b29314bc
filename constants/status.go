package constants

// DocumentStatus is the canonical status for rows in documents.
type DocumentStatus string

// Stable values (store these exact strings in DB). Each pipeline stage has
// an enter status, an exit status, and an error status; the pipeline halts
// at the error status until an operator restarts the document.
const (
	StatusPreprocessing  DocumentStatus = "preprocessing"
	StatusPreprocessed   DocumentStatus = "preprocessed"
	StatusOCRExtracting  DocumentStatus = "ocr_extracting"
	StatusOCRComplete    DocumentStatus = "ocr_complete"
	StatusLLMPredicting  DocumentStatus = "llm_predicting"
	StatusLLMComplete    DocumentStatus = "llm_complete"
	StatusDataExtracting DocumentStatus = "data_extracting"
	StatusDataExtracted  DocumentStatus = "data_extracted"
	StatusScanEvaluating DocumentStatus = "scan_evaluating"
	StatusScanEvaluated  DocumentStatus = "scan_evaluated"
	StatusCompleted      DocumentStatus = "completed"
	StatusManualReview   DocumentStatus = "manual_review"

	StatusErrorProcessing     DocumentStatus = "error_processing"
	StatusErrorOCR            DocumentStatus = "error_ocr"
	StatusErrorLLM            DocumentStatus = "error_llm"
	StatusErrorDataExtraction DocumentStatus = "error_data_extraction"
	StatusErrorEvaluation     DocumentStatus = "error_evaluation"
)

// stepIndex maps every status to a 1-based progress step out of StepTotal.
// Used by the status read model to render a progress bar.
var stepIndex = map[DocumentStatus]int{
	StatusPreprocessing:       1,
	StatusErrorProcessing:     1,
	StatusPreprocessed:        2,
	StatusOCRExtracting:       2,
	StatusErrorOCR:            2,
	StatusOCRComplete:         3,
	StatusLLMPredicting:       3,
	StatusErrorLLM:            3,
	StatusLLMComplete:         4,
	StatusDataExtracting:      4,
	StatusErrorDataExtraction: 4,
	StatusDataExtracted:       5,
	StatusScanEvaluating:      5,
	StatusErrorEvaluation:     5,
	StatusScanEvaluated:       6,
	StatusCompleted:           6,
	StatusManualReview:        6,
}

// StepTotal is the number of user-visible progress steps.
const StepTotal = 6

// StepIndex returns the 1-based progress step for a status, or 1 when the
// status is unknown (a fresh or out-of-band value renders as "starting").
func StepIndex(s DocumentStatus) int {
	if i, ok := stepIndex[s]; ok {
		return i
	}
	return 1
}

// Percentage returns the progress percentage for a status.
func Percentage(s DocumentStatus) int {
	return StepIndex(s) * 100 / StepTotal
}

// IsError reports whether the status is one of the stage error statuses.
func IsError(s DocumentStatus) bool {
	switch s {
	case StatusErrorProcessing, StatusErrorOCR, StatusErrorLLM,
		StatusErrorDataExtraction, StatusErrorEvaluation:
		return true
	}
	return false
}

// IsTerminal reports whether the pipeline is done with the document.
func IsTerminal(s DocumentStatus) bool {
	return s == StatusCompleted || s == StatusManualReview
}

// descriptions holds the operator-facing text per status.
var descriptions = map[DocumentStatus]string{
	StatusPreprocessing:       "Analyzing the uploaded scan",
	StatusPreprocessed:        "Scan analyzed",
	StatusOCRExtracting:       "Reading text from the scan",
	StatusOCRComplete:         "Text extracted",
	StatusLLMPredicting:       "Interpreting invoice contents",
	StatusLLMComplete:         "Invoice contents interpreted",
	StatusDataExtracting:      "Structuring invoice fields",
	StatusDataExtracted:       "Invoice fields structured",
	StatusScanEvaluating:      "Evaluating extraction quality",
	StatusScanEvaluated:       "Extraction evaluated",
	StatusCompleted:           "Processing completed",
	StatusManualReview:        "Waiting for manual review",
	StatusErrorProcessing:     "Failed while analyzing the scan",
	StatusErrorOCR:            "Failed while reading text",
	StatusErrorLLM:            "Failed while interpreting contents",
	StatusErrorDataExtraction: "Failed while structuring fields",
	StatusErrorEvaluation:     "Failed while evaluating quality",
}

// Describe returns the operator-facing description for a status.
func Describe(s DocumentStatus) string {
	if d, ok := descriptions[s]; ok {
		return d
	}
	return string(s)
}
