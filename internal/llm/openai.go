package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config configures the chat-completions extractor. BaseURL may point at
// OpenAI or any compatible local server.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration

	// LowConfThreshold logs a hint when OCR confidence from the previous
	// stage is below it.
	LowConfThreshold float64

	// LenientOptional retries validation after dropping malformed
	// optional fields instead of failing the extraction outright.
	LenientOptional bool
}

// Client implements FieldExtractor against a chat-completions endpoint.
type Client struct {
	cfg Config
	hc  *http.Client
	log *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.LowConfThreshold <= 0 {
		cfg.LowConfThreshold = 0.6
	}
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
		log: log,
	}
}

// ExtractFields sends the OCR text through the model and returns the raw
// extraction JSON, validated against the invoice schema.
func (c *Client) ExtractFields(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"text_len", len(req.OCRText),
		"ocr_confidence", req.OCRConfidence,
	)
	if req.OCRConfidence > 0 && req.OCRConfidence < c.cfg.LowConfThreshold {
		c.log.Warn("llm.extract.low_ocr_confidence",
			"req_id", rid, "ocr_confidence", req.OCRConfidence,
			"hint", "vision path not implemented; proceeding with text-only")
	}

	schema := BuildInvoiceJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt(req)},
			{"role": "user", "content": buildUserPrompt(req.OCRText, req.FilenameHint) +
				"\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := SendJSON(ctx, c.hc, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return ExtractResult{}, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return ExtractResult{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return ExtractResult{}, fmt.Errorf("no choices in chat response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := ValidateJSONAgainstSchema(schema, content); err != nil {
		if !c.cfg.LenientOptional {
			return ExtractResult{}, err
		}
		cleaned, droppedFields, sErr := SanitizeOptionalFields(content)
		if sErr != nil {
			return ExtractResult{}, err
		}
		if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			return ExtractResult{}, err
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", droppedFields,
			"elapsed_ms", time.Since(start).Milliseconds())
		content = cleaned
	}

	res := ExtractResult{Raw: content, Confidence: extractConfidence(content)}
	c.log.Info("llm.extract.ok",
		"req_id", rid, "bytes", len(content), "confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds())
	return res, nil
}

// extractConfidence pulls the model's self-reported confidence out of the
// extraction, defaulting to 0.5 when absent.
func extractConfidence(raw []byte) float64 {
	var probe struct {
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Confidence == nil {
		return 0.5
	}
	return *probe.Confidence
}
