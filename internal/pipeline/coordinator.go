package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/scanvoice/invoice-pipeline/constants"
	"github.com/scanvoice/invoice-pipeline/internal/blob"
	"github.com/scanvoice/invoice-pipeline/internal/dispatch"
	"github.com/scanvoice/invoice-pipeline/internal/docmodel"
	"github.com/scanvoice/invoice-pipeline/internal/entity"
	"github.com/scanvoice/invoice-pipeline/internal/llm"
	"github.com/scanvoice/invoice-pipeline/internal/mapper"
	"github.com/scanvoice/invoice-pipeline/internal/ocr"
	"github.com/scanvoice/invoice-pipeline/internal/repository"
	"github.com/scanvoice/invoice-pipeline/internal/schema"
)

// Coordinator owns the stage choreography. All stages share the same
// skeleton: enter status (best effort), stage work, exit status, dispatch
// of the next stage. Status writes are unconditional last-write-wins; a
// failed enter write is logged and tolerated, a failed exit write routes
// the document to the stage's error status and suppresses the dispatch.
type Coordinator struct {
	repo    repository.DocumentRepository
	blobs   blob.Store
	backend dispatch.Backend
	catalog *schema.Registry

	text   ocr.TextExtractor
	fields llm.FieldExtractor
	mapper *mapper.Mapper

	template        *docmodel.Group
	reviewThreshold float64
	logger          *slog.Logger
}

// Options carries the optional knobs for a Coordinator.
type Options struct {
	// Template is merged over every structured document with template
	// precedence. Nil selects DefaultTemplate.
	Template *docmodel.Group

	// ReviewThreshold is the minimum mean leaf confidence below which the
	// evaluation stage parks a document for manual review. Zero selects
	// 0.75.
	ReviewThreshold float64
}

func NewCoordinator(
	repo repository.DocumentRepository,
	blobs blob.Store,
	backend dispatch.Backend,
	catalog *schema.Registry,
	text ocr.TextExtractor,
	fields llm.FieldExtractor,
	opts Options,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Template == nil {
		opts.Template = DefaultTemplate()
	}
	if opts.ReviewThreshold <= 0 {
		opts.ReviewThreshold = 0.75
	}
	return &Coordinator{
		repo:            repo,
		blobs:           blobs,
		backend:         backend,
		catalog:         catalog,
		text:            text,
		fields:          fields,
		mapper:          mapper.New(logger),
		template:        opts.Template,
		reviewThreshold: opts.ReviewThreshold,
		logger:          logger,
	}
}

// Handle routes a stage message to its stage. Messages for unknown stages
// are logged and dropped, never failed: a newer producer must not wedge an
// older consumer.
func (c *Coordinator) Handle(ctx context.Context, msg dispatch.Message) error {
	spec, ok := stageSpecs[msg.Stage]
	if !ok {
		c.logger.Warn("pipeline.stage.unknown", "stage", msg.Stage, "document_id", msg.DocumentID)
		return nil
	}
	return c.run(ctx, msg, spec)
}

// StageHandler processes messages for exactly one stage and silently
// ignores every other stage name. This is the unit a topic consumer or a
// stage endpoint binds to.
type StageHandler struct {
	c     *Coordinator
	stage string
}

// HandlerFor returns the handler bound to one stage name.
func (c *Coordinator) HandlerFor(stage string) *StageHandler {
	return &StageHandler{c: c, stage: stage}
}

func (h *StageHandler) Handle(ctx context.Context, msg dispatch.Message) error {
	if msg.Stage != h.stage {
		h.c.logger.Debug("pipeline.stage.mismatch",
			"bound", h.stage, "got", msg.Stage, "document_id", msg.DocumentID)
		return nil
	}
	spec := stageSpecs[h.stage]
	return h.c.run(ctx, msg, spec)
}

func (c *Coordinator) run(ctx context.Context, msg dispatch.Message, spec stageSpec) error {
	log := c.logger.With("stage", msg.Stage, "document_id", msg.DocumentID)

	doc, err := c.repo.GetByID(ctx, msg.DocumentID)
	if err != nil {
		if err == repository.ErrNotFound {
			log.Warn("pipeline.stage.document_missing")
			return nil
		}
		return fmt.Errorf("load document: %w", err)
	}
	if pastStage(doc.Status, spec) {
		log.Info("pipeline.stage.stale_message", "status", doc.Status)
		return nil
	}

	if touched, err := c.repo.UpdateStatus(ctx, doc.ID, spec.Enter); err != nil {
		log.Warn("pipeline.stage.enter_status_failed", "status", spec.Enter, "error", err)
	} else if !touched {
		log.Warn("pipeline.stage.row_vanished")
		return nil
	}
	doc.Status = spec.Enter

	final, err := c.work(ctx, msg.Stage, doc)
	if err != nil {
		log.Error("pipeline.stage.failed", "error", err)
		if sErr := c.repo.SetError(ctx, doc.ID, spec.Error, err.Error()); sErr != nil {
			log.Warn("pipeline.stage.error_status_failed", "error", sErr)
		}
		return nil
	}

	if touched, err := c.repo.UpdateStatus(ctx, doc.ID, spec.Exit); err != nil || !touched {
		log.Error("pipeline.stage.exit_status_failed", "status", spec.Exit, "touched", touched, "error", err)
		if sErr := c.repo.SetError(ctx, doc.ID, spec.Error, "exit status write failed"); sErr != nil {
			log.Warn("pipeline.stage.error_status_failed", "error", sErr)
		}
		return nil
	}

	if final != "" {
		if _, err := c.repo.UpdateStatus(ctx, doc.ID, final); err != nil {
			log.Warn("pipeline.stage.final_status_failed", "status", final, "error", err)
		}
		log.Info("pipeline.stage.ok", "result", final)
		return nil
	}

	if spec.Next != "" {
		res := c.dispatchStage(ctx, spec.Next, doc.ID, doc.CompanyID)
		if !res.OK() {
			log.Error("pipeline.stage.dispatch_failed", "next", spec.Next, "dispatch_status", res.Status)
			if sErr := c.repo.SetError(ctx, doc.ID, spec.Error,
				fmt.Sprintf("dispatch to %s failed: %s", spec.Next, res.Status)); sErr != nil {
				log.Warn("pipeline.stage.error_status_failed", "error", sErr)
			}
			return nil
		}
	}
	log.Info("pipeline.stage.ok")
	return nil
}

// work runs one stage's unit of work against a freshly loaded document.
// The returned status, when non-empty, is a terminal status the stage
// resolved beyond its exit status.
func (c *Coordinator) work(ctx context.Context, stage string, doc *entity.Document) (constants.DocumentStatus, error) {
	switch stage {
	case StagePreprocess:
		return "", c.preprocess(ctx, doc)
	case StageOCR:
		return "", c.runOCR(ctx, doc)
	case StageLLM:
		return "", c.predict(ctx, doc)
	case StageStructure:
		return "", c.structure(ctx, doc)
	case StageEvaluate:
		return c.evaluate(ctx, doc)
	}
	return "", fmt.Errorf("no work defined for stage %q", stage)
}

func (c *Coordinator) dispatchStage(ctx context.Context, stage string, documentID, companyID uuid.UUID) dispatch.Result {
	return c.backend.Dispatch(ctx, dispatch.Message{
		DocumentID: documentID,
		CompanyID:  companyID,
		Stage:      stage,
	})
}

// Submit registers a freshly uploaded scan and kicks off its pipeline. The
// document row is created at the first enter status before the dispatch so
// a status poll never sees a missing row.
func (c *Coordinator) Submit(ctx context.Context, doc *entity.Document) error {
	doc.Status = constants.StatusPreprocessing
	if err := c.repo.Create(ctx, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	res := c.dispatchStage(ctx, StagePreprocess, doc.ID, doc.CompanyID)
	if !res.OK() {
		return fmt.Errorf("dispatch %s: %s", StagePreprocess, res.Status)
	}
	c.logger.Info("pipeline.submitted", "document_id", doc.ID, "task_id", res.TaskID)
	return nil
}

// Restart pushes a parked document back to the start of the pipeline.
// Restart is the only operator-facing recovery: it always re-runs from the
// first stage, so every downstream layer is recomputed.
func (c *Coordinator) Restart(ctx context.Context, documentID uuid.UUID) error {
	doc, err := c.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if touched, err := c.repo.UpdateStatus(ctx, doc.ID, constants.StatusPreprocessing); err != nil {
		return fmt.Errorf("reset status: %w", err)
	} else if !touched {
		return repository.ErrNotFound
	}
	res := c.dispatchStage(ctx, StagePreprocess, doc.ID, doc.CompanyID)
	if !res.OK() {
		return fmt.Errorf("dispatch %s: %s", StagePreprocess, res.Status)
	}
	c.logger.Info("pipeline.restarted", "document_id", doc.ID, "task_id", res.TaskID)
	return nil
}
