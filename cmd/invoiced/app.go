package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scanvoice/invoice-pipeline/internal/blob"
	"github.com/scanvoice/invoice-pipeline/internal/common"
	"github.com/scanvoice/invoice-pipeline/internal/corrections"
	"github.com/scanvoice/invoice-pipeline/internal/dispatch"
	"github.com/scanvoice/invoice-pipeline/internal/export"
	"github.com/scanvoice/invoice-pipeline/internal/ingest"
	"github.com/scanvoice/invoice-pipeline/internal/llm"
	"github.com/scanvoice/invoice-pipeline/internal/ocr"
	"github.com/scanvoice/invoice-pipeline/internal/pipeline"
	"github.com/scanvoice/invoice-pipeline/internal/repository"
	"github.com/scanvoice/invoice-pipeline/internal/schema"
)

// app holds the wired object graph shared by the commands.
type app struct {
	cfg    *common.Config
	logger *slog.Logger

	pool  *pgxpool.Pool
	topic *dispatch.TopicBackend

	repo        repository.DocumentRepository
	blobs       blob.Store
	backend     dispatch.Backend
	registry    *schema.Registry
	coordinator *pipeline.Coordinator
	corrections *corrections.Service
	exporter    *export.Service
	ingestor    *ingest.Ingestor
}

func buildApp(ctx context.Context) (*app, error) {
	logger := slog.Default()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	if cfg.Database.DSN != "" {
		pool, err := repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := repository.HealthCheck(ctx, pool, 3*time.Second, logger); err != nil {
			pool.Close()
			return nil, err
		}
		a.pool = pool
		a.repo = repository.NewPostgresRepository(pool, logger)
	} else {
		logger.Warn("app.no_database_configured", "hint", "using in-memory repository, state is lost on exit")
		a.repo = repository.NewMemoryRepository()
	}

	a.blobs = blob.NewFSStore(cfg.Blob.Root)
	a.registry = schema.NewRegistry(cfg.Pipeline.CatalogPath, logger)

	switch cfg.Dispatch.Backend {
	case "http":
		a.backend = dispatch.NewHTTPBackend(dispatch.HTTPConfig{
			Endpoint: cfg.Dispatch.HTTPEndpoint,
			Timeout:  cfg.Dispatch.HTTPTimeout,
		}, logger)
	case "topic":
		tb, err := dispatch.OpenTopicBackend(cfg.Dispatch.TopicDB, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.topic = tb
		a.backend = tb
	case "mock":
		a.backend = dispatch.NewMockBackend()
	default:
		a.Close()
		return nil, fmt.Errorf("unknown dispatch backend %q", cfg.Dispatch.Backend)
	}

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext: cfg.OCR.Pdftotext,
		Pdftoppm:  cfg.OCR.Pdftoppm,
		Languages: cfg.OCR.Languages,
		DPI:       cfg.OCR.DPI,
		MaxPages:  cfg.OCR.MaxPages,
	}, ocr.NewTesseractEngine(), logger)

	llmClient := llm.NewClient(llm.Config{
		BaseURL:         cfg.LLM.BaseURL,
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         cfg.LLM.Timeout,
		LenientOptional: true,
	}, logger)

	a.coordinator = pipeline.NewCoordinator(
		a.repo, a.blobs, a.backend, a.registry, extractor, llmClient,
		pipeline.Options{ReviewThreshold: cfg.Pipeline.ReviewThreshold},
		logger,
	)
	a.corrections = corrections.NewService(a.repo, a.registry, logger)
	a.exporter = export.NewService(a.repo, logger)

	companyID := uuid.Nil
	if cfg.Ingest.CompanyID != "" {
		id, err := uuid.Parse(cfg.Ingest.CompanyID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse INGEST_COMPANY_ID: %w", err)
		}
		companyID = id
	}
	a.ingestor = ingest.NewIngestor(a.blobs, a.coordinator, companyID, logger)

	return a, nil
}

// startConsumer runs the topic consumer when the topic backend is active.
// With the http or mock backend there is nothing to consume.
func (a *app) startConsumer(ctx context.Context) {
	if a.topic == nil {
		return
	}
	topics := make([]string, 0, len(pipeline.Stages))
	for _, s := range pipeline.Stages {
		topics = append(topics, dispatch.TopicName(s))
	}
	consumer := dispatch.NewConsumer(a.topic, dispatch.ConsumerConfig{
		Topics: topics,
		Poll:   a.cfg.Dispatch.TopicPoll,
	}, a.coordinator.Handle, a.logger)
	go consumer.Run(ctx)
	a.logger.Info("app.topic_consumer_started", "topics", topics)
}

func (a *app) Close() {
	if a.topic != nil {
		_ = a.topic.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
