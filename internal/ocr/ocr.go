// Package ocr turns uploaded scans into plain text with a confidence
// estimate. Images go through an in-process Tesseract client; PDFs try
// their embedded text layer first and fall back to rasterized OCR.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/scanvoice/invoice-pipeline/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	Languages []string // tesseract languages, default ["eng"]
	DPI       int      // rasterization DPI for scanned PDFs, default 300
	MaxPages  int      // 0 = no limit
}

func (c *Config) defaults() {
	if c.Pdftotext == "" {
		c.Pdftotext = "pdftotext"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"eng"}
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
}

// Result is the outcome of a text extraction.
type Result struct {
	Text       string
	Pages      int
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Duration   time.Duration
	Warnings   []string
	Confidence float64
}

// TextExtractor is the interface the OCR stage depends on.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, format string) (Result, error)
}

// Extractor extracts text from PDF and image payloads.
type Extractor struct {
	cfg    Config
	runner Runner
	engine Engine
	logger *slog.Logger
}

// Engine recognizes text in a single image. The production engine wraps
// gosseract; tests plug in a stub.
type Engine interface {
	Recognize(ctx context.Context, image []byte, languages []string) (text string, confidence float64, err error)
}

func NewExtractor(cfg Config, engine Engine, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()
	return &Extractor{cfg: cfg, runner: execRunner{}, engine: engine, logger: logger}
}

// Extract dispatches on format. The payload is written to a scratch file
// for the external PDF tools; images are fed to the engine directly.
func (e *Extractor) Extract(ctx context.Context, data []byte, format string) (Result, error) {
	start := time.Now()
	var res Result
	var err error
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, data)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, data)
	default:
		return Result{}, fmt.Errorf("unsupported format: %s", format)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	e.logger.Info("ocr.extracted",
		"method", res.Method, "pages", res.Pages,
		"bytes", len(res.Text), "confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) (Result, error) {
	text, conf, err := e.engine.Recognize(ctx, data, e.cfg.Languages)
	if err != nil {
		return Result{Method: "image-ocr"}, fmt.Errorf("image ocr: %w", err)
	}
	text = Normalize(text)
	blended := blendConfidence(conf, heuristicConfidence(text))
	return Result{
		Text:       text,
		Pages:      1,
		Method:     "image-ocr",
		Confidence: blended,
	}, nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (Result, error) {
	tmp, err := os.CreateTemp("", "inv-scan-*.pdf")
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Result{}, err
	}
	tmp.Close()

	text, pages, warns, err := e.pdfToText(ctx, tmp.Name())
	if err == nil && len(strings.TrimSpace(text)) > 32 {
		// A usable text layer is the most reliable source there is.
		return Result{
			Text:       Normalize(text),
			Pages:      pages,
			Method:     "pdf-text",
			Warnings:   warns,
			Confidence: 0.95,
		}, nil
	}

	// No text layer (a pure scan): rasterize and OCR page by page.
	res, ocrErr := e.pdfToOCR(ctx, tmp.Name())
	if ocrErr != nil {
		return res, fmt.Errorf("pdf ocr: %w", ocrErr)
	}
	res.Warnings = append(warns, res.Warnings...)
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is the default page separator.
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "inv-pp-*")
	if err != nil {
		return Result{Method: "pdf-ocr"}, err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return Result{Method: "pdf-ocr", Warnings: []string{string(errb)}}, err
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{Method: "pdf-ocr"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	var confSum float64
	var confN int
	for _, img := range matches {
		data, err := os.ReadFile(img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		txt, conf, err := e.engine.Recognize(ctx, data, e.cfg.Languages)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		b.WriteString(txt)
		b.WriteString("\f")
		confSum += conf
		confN++
	}
	text := Normalize(b.String())
	var engineConf float64
	if confN > 0 {
		engineConf = confSum / float64(confN)
	}
	return Result{
		Text:       text,
		Pages:      len(matches),
		Method:     "pdf-ocr",
		Warnings:   warns,
		Confidence: blendConfidence(engineConf, heuristicConfidence(text)),
	}, nil
}

// blendConfidence weighs the engine's own estimate higher than the text
// heuristic when one is available.
func blendConfidence(engine, heuristic float64) float64 {
	var conf float64
	if engine > 0 {
		conf = 0.7*engine + 0.3*heuristic
	} else {
		conf = heuristic
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
