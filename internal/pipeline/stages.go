// Package pipeline drives a document through its processing stages. Each
// stage consumes exactly one dispatch message, moves the document through
// an enter status and an exit status, persists its outputs and dispatches
// the next stage. On failure the document parks at the stage's error
// status until an operator restarts it.
package pipeline

import "github.com/scanvoice/invoice-pipeline/constants"

// Stage names as carried in dispatch messages and topic names.
const (
	StagePreprocess = "preprocess"
	StageOCR        = "ocr"
	StageLLM        = "llm"
	StageStructure  = "structure"
	StageEvaluate   = "evaluate"
)

// Stages lists the stage names in pipeline order.
var Stages = []string{StagePreprocess, StageOCR, StageLLM, StageStructure, StageEvaluate}

// stageSpec holds the status choreography of one stage. Next is empty for
// the last stage.
type stageSpec struct {
	Enter constants.DocumentStatus
	Exit  constants.DocumentStatus
	Error constants.DocumentStatus
	Next  string
}

var stageSpecs = map[string]stageSpec{
	StagePreprocess: {
		Enter: constants.StatusPreprocessing,
		Exit:  constants.StatusPreprocessed,
		Error: constants.StatusErrorProcessing,
		Next:  StageOCR,
	},
	StageOCR: {
		Enter: constants.StatusOCRExtracting,
		Exit:  constants.StatusOCRComplete,
		Error: constants.StatusErrorOCR,
		Next:  StageLLM,
	},
	StageLLM: {
		Enter: constants.StatusLLMPredicting,
		Exit:  constants.StatusLLMComplete,
		Error: constants.StatusErrorLLM,
		Next:  StageStructure,
	},
	StageStructure: {
		Enter: constants.StatusDataExtracting,
		Exit:  constants.StatusDataExtracted,
		Error: constants.StatusErrorDataExtraction,
		Next:  StageEvaluate,
	},
	StageEvaluate: {
		Enter: constants.StatusScanEvaluating,
		Exit:  constants.StatusScanEvaluated,
		Error: constants.StatusErrorEvaluation,
		Next:  "",
	},
}

// statusRank places every status on a single linear scale so a handler can
// tell whether a document has already moved past the stage a message is
// for. Error statuses rank with their stage's enter status so a retried
// delivery can re-run a failed stage.
var statusRank = map[constants.DocumentStatus]int{
	constants.StatusPreprocessing:  0,
	constants.StatusPreprocessed:   1,
	constants.StatusOCRExtracting:  2,
	constants.StatusOCRComplete:    3,
	constants.StatusLLMPredicting:  4,
	constants.StatusLLMComplete:    5,
	constants.StatusDataExtracting: 6,
	constants.StatusDataExtracted:  7,
	constants.StatusScanEvaluating: 8,
	constants.StatusScanEvaluated:  9,
	constants.StatusCompleted:      10,
	constants.StatusManualReview:   10,

	constants.StatusErrorProcessing:     0,
	constants.StatusErrorOCR:            2,
	constants.StatusErrorLLM:            4,
	constants.StatusErrorDataExtraction: 6,
	constants.StatusErrorEvaluation:     8,
}

// pastStage reports whether a document in the given status has already
// entered (or passed) a later stage than the one specified.
func pastStage(status constants.DocumentStatus, spec stageSpec) bool {
	r, ok := statusRank[status]
	if !ok {
		return false
	}
	return r > statusRank[spec.Enter]
}
