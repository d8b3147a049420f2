package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/username/tradelens/backend/src/logger"
)

// ErrEmptyText is returned when the OCR service answered but recognized no
// text in the image.
var ErrEmptyText = errors.New("ocr produced no text")

// Result carries the recognized text plus word-level confidence info.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // average word confidence, 0-100
	Words      int     `json:"words"`
}

// Engine is the OCR capability: image bytes in, text out. Implementations do
// not retry; a failure surfaces to the caller of that one extraction.
type Engine interface {
	ExtractText(ctx context.Context, image []byte, filename string) (Result, error)
}

// HTTPEngine talks to a tesseract-style OCR HTTP service.
type HTTPEngine struct {
	client  *resty.Client
	limiter *rate.Limiter
}

var _ Engine = (*HTTPEngine)(nil)

type ocrResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Words      int     `json:"words"`
	Error      string  `json:"error"`
}

// NewHTTPEngine creates an OCR client against baseURL. callsPerSecond
// throttles outbound OCR requests so a burst of uploads does not overwhelm
// the recognizer.
func NewHTTPEngine(baseURL string, timeout time.Duration, callsPerSecond float64) *HTTPEngine {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &HTTPEngine{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), 1),
	}
}

func (e *HTTPEngine) ExtractText(ctx context.Context, image []byte, filename string) (Result, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("ocr rate limiter wait failed: %w", err)
	}

	var body ocrResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(image)).
		SetResult(&body).
		Post("/ocr")
	if err != nil {
		logger.L.Error("OCR request failed", "filename", filename, "error", err)
		return Result{}, fmt.Errorf("ocr request failed: %w", err)
	}
	if resp.IsError() {
		logger.L.Error("OCR service returned error status", "filename", filename, "status", resp.StatusCode(), "body", body.Error)
		return Result{}, fmt.Errorf("ocr service returned status %d", resp.StatusCode())
	}

	if strings.TrimSpace(body.Text) == "" {
		return Result{}, ErrEmptyText
	}

	logger.L.Debug("OCR completed", "filename", filename, "confidence", body.Confidence, "words", body.Words)
	return Result{Text: body.Text, Confidence: body.Confidence, Words: body.Words}, nil
}
