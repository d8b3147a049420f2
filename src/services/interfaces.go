package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/tradelens/backend/src/models"
)

// Stage-specific sentinel errors so handlers can tell the client which part
// of the pipeline failed.
var (
	ErrImageUnreadable = errors.New("image could not be read")
	ErrOcrFailed       = errors.New("ocr extraction failed")
	ErrStoreFailed     = errors.New("trade log append failed")
)

// ExtractResult is the response body for a single extraction.
type ExtractResult struct {
	Message string              `json:"message"`
	Record  *models.TradeRecord `json:"record"`
}

// BatchDetail is the per-image outcome of a batch run.
type BatchDetail struct {
	Image  string              `json:"image"`
	Error  string              `json:"error,omitempty"`
	Record *models.TradeRecord `json:"record,omitempty"`
}

// BatchResult summarizes a directory extraction. One failed image never
// aborts the rest of the batch.
type BatchResult struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"ok"`
	Failed    int           `json:"fail"`
	Details   []BatchDetail `json:"details"`
}

// ExtractionService is the core pipeline: store image, OCR, parse fields,
// build a record, append it to the trade log, and serve derived views.
type ExtractionService interface {
	ProcessUpload(ctx context.Context, file io.Reader, filename string) (*ExtractResult, error)
	ProcessPath(ctx context.Context, imagePath string) (*ExtractResult, error)
	ProcessDirectory(ctx context.Context, dir string) (*BatchResult, error)
	GetStats() (models.StatsSnapshot, error)
	SearchTrades(q models.SearchQuery) ([]models.TradeRecord, error)
	ListImages() ([]models.ImageEntry, error)
	RawLog() (string, error)
}
