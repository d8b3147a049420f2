package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/tradelens/backend/src/llm"
	"github.com/username/tradelens/backend/src/logger"
	"github.com/username/tradelens/backend/src/models"
	"github.com/username/tradelens/backend/src/ocr"
	"github.com/username/tradelens/backend/src/parsers"
	"github.com/username/tradelens/backend/src/processors"
	"github.com/username/tradelens/backend/src/storage"
)

const (
	// Aggregate cache; invalidated on every append.
	ckStatsSnapshot = "agg_stats_snapshot"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

var batchImageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".gif": true, ".tiff": true,
}

type extractionServiceImpl struct {
	engine      ocr.Engine
	analyzer    llm.Analyzer
	fieldParser parsers.Parser
	statsProc   *processors.StatsProcessor
	searchProc  *processors.SearchProcessor
	tradeLog    *storage.TradeLog
	files       *storage.FileStore
	reportCache *cache.Cache
	now         func() time.Time
}

func NewExtractionService(
	engine ocr.Engine,
	analyzer llm.Analyzer,
	fieldParser parsers.Parser,
	statsProc *processors.StatsProcessor,
	searchProc *processors.SearchProcessor,
	tradeLog *storage.TradeLog,
	files *storage.FileStore,
	reportCache *cache.Cache,
) ExtractionService {
	return &extractionServiceImpl{
		engine:      engine,
		analyzer:    analyzer,
		fieldParser: fieldParser,
		statsProc:   statsProc,
		searchProc:  searchProc,
		tradeLog:    tradeLog,
		files:       files,
		reportCache: reportCache,
		now:         time.Now,
	}
}

func (s *extractionServiceImpl) ProcessUpload(ctx context.Context, file io.Reader, filename string) (*ExtractResult, error) {
	startTime := s.now()
	logger.L.Info("ProcessUpload START", "filename", filename)

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}

	rawUpload, err := s.files.StoreUpload(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	result, err := s.extract(ctx, data, filename)
	if err != nil {
		s.discard(rawUpload.AbsPath)
		return nil, err
	}
	logger.L.Info("ProcessUpload END", "filename", filename, "recordID", result.Record.ID, "duration", time.Since(startTime))
	return result, nil
}

func (s *extractionServiceImpl) ProcessPath(ctx context.Context, imagePath string) (*ExtractResult, error) {
	logger.L.Info("ProcessPath START", "imagePath", imagePath)

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	return s.extract(ctx, data, filepath.Base(imagePath))
}

func (s *extractionServiceImpl) ProcessDirectory(ctx context.Context, dir string) (*BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}

	result := &BatchResult{Details: []BatchDetail{}}
	for _, entry := range entries {
		if entry.IsDir() || !batchImageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		result.Total++
		res, err := s.ProcessPath(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			result.Failed++
			result.Details = append(result.Details, BatchDetail{Image: entry.Name(), Error: err.Error()})
			logger.L.Warn("Batch extraction failed for image", "image", entry.Name(), "error", err)
			continue
		}
		result.Succeeded++
		result.Details = append(result.Details, BatchDetail{Image: entry.Name(), Record: res.Record})
	}
	if result.Total == 0 {
		return nil, fmt.Errorf("%w: no image files found in %s", ErrImageUnreadable, dir)
	}
	return result, nil
}

// extract runs the pipeline over raw image bytes: store the file, OCR it,
// structure the text, append one record. Parsing never fails the request;
// only unreadable input, OCR errors, and log-append errors do.
func (s *extractionServiceImpl) extract(ctx context.Context, data []byte, filename string) (*ExtractResult, error) {
	stored, err := s.files.StoreProcessed(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	ocrResult, err := s.engine.ExtractText(ctx, data, filename)
	if err != nil && !errors.Is(err, ocr.ErrEmptyText) {
		s.discard(stored.AbsPath)
		return nil, fmt.Errorf("%w: %v", ErrOcrFailed, err)
	}
	// Empty OCR output still produces a record: the upload happened, the
	// image is stored, only the fields stay null.
	rawText := ocrResult.Text

	fields := models.TradeFields{Side: models.SideUnknown}
	if rawText != "" {
		aiFields, aiErr := s.analyzer.Analyze(ctx, rawText, filename)
		if aiErr != nil {
			logger.L.Warn("AI structuring failed, falling back to pattern matching", "filename", filename, "error", aiErr)
		} else {
			fields = aiFields
		}
		fields.FillFrom(s.fieldParser.Parse(rawText))
	}

	var confidence *float64
	if ocrResult.Words > 0 {
		c := ocrResult.Confidence
		confidence = &c
	}

	record := s.buildRecord(fields, models.UploadMetadata{
		Filename:      filename,
		StoredPath:    stored.RelPath,
		UploadedAt:    s.now(),
		RawText:       rawText,
		OcrConfidence: confidence,
	})

	if err := s.tradeLog.Append(record); err != nil {
		s.discard(stored.AbsPath)
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	s.invalidateDerived()

	return &ExtractResult{Message: "trade extracted and logged", Record: &record}, nil
}

// buildRecord merges parsed fields with upload context. It never fails:
// absent fields stay null.
func (s *extractionServiceImpl) buildRecord(fields models.TradeFields, meta models.UploadMetadata) models.TradeRecord {
	loggedAt := meta.UploadedAt.Format(time.RFC3339)
	timestamp := loggedAt
	if fields.Timestamp != nil {
		timestamp = *fields.Timestamp
	}
	side := fields.Side
	if side == "" {
		side = models.SideUnknown
	}

	return models.TradeRecord{
		ID:            uuid.NewString()[:8],
		Timestamp:     timestamp,
		Symbol:        fields.Symbol,
		Side:          side,
		Quantity:      fields.Quantity,
		Price:         fields.Price,
		EntryPrice:    fields.EntryPrice,
		ExitPrice:     fields.ExitPrice,
		PnL:           fields.PnL,
		Timeframe:     fields.Timeframe,
		Notes:         fields.Notes,
		SourceImage:   meta.StoredPath,
		RawText:       meta.RawText,
		OcrConfidence: meta.OcrConfidence,
		LoggedAt:      loggedAt,
	}
}

// discard removes a stored image after a failed extraction so no orphan is
// left behind for the gallery to pick up.
func (s *extractionServiceImpl) discard(absPath string) {
	if err := os.Remove(absPath); err != nil {
		logger.L.Warn("Failed to remove stored image after failed extraction", "path", absPath, "error", err)
	}
}

// invalidateDerived clears cached aggregates so the next request recomputes
// from the log. Search keys are query-shaped, so only a full flush covers
// them; the cache holds nothing but derived views.
func (s *extractionServiceImpl) invalidateDerived() {
	s.reportCache.Flush()
	logger.L.Debug("Invalidated derived-report caches")
}

func (s *extractionServiceImpl) GetStats() (models.StatsSnapshot, error) {
	if cached, found := s.reportCache.Get(ckStatsSnapshot); found {
		logger.L.Debug("Cache hit for stats snapshot")
		return cached.(models.StatsSnapshot), nil
	}
	logger.L.Info("Cache miss for stats snapshot, recomputing from trade log")

	records, err := s.tradeLog.ReadAll()
	if err != nil {
		return models.StatsSnapshot{}, err
	}
	snapshot := s.statsProc.Compute(records)
	s.reportCache.Set(ckStatsSnapshot, snapshot, DefaultCacheExpiration)
	return snapshot, nil
}

func (s *extractionServiceImpl) SearchTrades(q models.SearchQuery) ([]models.TradeRecord, error) {
	key := searchCacheKey(q)
	if cached, found := s.reportCache.Get(key); found {
		logger.L.Debug("Cache hit for search results", "key", key)
		return cached.([]models.TradeRecord), nil
	}

	records, err := s.tradeLog.ReadAll()
	if err != nil {
		return nil, err
	}
	matches := s.searchProc.Filter(records, q)
	s.reportCache.Set(key, matches, DefaultCacheExpiration)
	return matches, nil
}

func searchCacheKey(q models.SearchQuery) string {
	return fmt.Sprintf("search_%s|%s|%s|%s|%s|%d", q.Query, q.Symbol, q.Side, q.From, q.To, q.Limit)
}

func (s *extractionServiceImpl) ListImages() ([]models.ImageEntry, error) {
	return s.files.ListImages()
}

func (s *extractionServiceImpl) RawLog() (string, error) {
	return s.tradeLog.RawContent()
}
