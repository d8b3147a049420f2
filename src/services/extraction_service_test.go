package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradelens/backend/src/models"
	"github.com/username/tradelens/backend/src/ocr"
	"github.com/username/tradelens/backend/src/parsers"
	"github.com/username/tradelens/backend/src/processors"
	"github.com/username/tradelens/backend/src/storage"
)

type stubEngine struct {
	result ocr.Result
	err    error
	calls  int
}

func (s *stubEngine) ExtractText(ctx context.Context, image []byte, filename string) (ocr.Result, error) {
	s.calls++
	return s.result, s.err
}

type stubAnalyzer struct {
	fields models.TradeFields
	err    error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, rawText, imageName string) (models.TradeFields, error) {
	return s.fields, s.err
}

type fixture struct {
	service  ExtractionService
	engine   *stubEngine
	analyzer *stubAnalyzer
	tradeLog *storage.TradeLog
	cache    *cache.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	tradeLog, err := storage.NewTradeLog(filepath.Join(root, "logs", "trade_log.jsonl"))
	require.NoError(t, err)
	files, err := storage.NewFileStore(filepath.Join(root, "uploads"), filepath.Join(root, "processed"))
	require.NoError(t, err)

	engine := &stubEngine{result: ocr.Result{Text: "BUY AAPL 100 @ 150.25 PnL: +38.07", Confidence: 90.5, Words: 7}}
	analyzer := &stubAnalyzer{fields: models.TradeFields{Side: models.SideUnknown}}
	reportCache := cache.New(DefaultCacheExpiration, CacheCleanupInterval)

	service := NewExtractionService(
		engine, analyzer, parsers.NewFieldParser(),
		processors.NewStatsProcessor(), processors.NewSearchProcessor(),
		tradeLog, files, reportCache,
	)
	return &fixture{service: service, engine: engine, analyzer: analyzer, tradeLog: tradeLog, cache: reportCache}
}

func TestProcessUploadAppendsExactlyOneRecord(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.service.ProcessUpload(context.Background(), strings.NewReader("png-bytes"), "trade.png")
	require.NoError(t, err)
	require.NotNil(t, result.Record)

	assert.Len(t, result.Record.ID, 8)
	assert.Equal(t, models.SideBuy, result.Record.Side)
	require.NotNil(t, result.Record.Symbol)
	assert.Equal(t, "AAPL", *result.Record.Symbol)
	require.NotNil(t, result.Record.PnL)
	assert.Equal(t, 38.07, *result.Record.PnL)
	require.NotNil(t, result.Record.OcrConfidence)
	assert.Equal(t, 90.5, *result.Record.OcrConfidence)
	assert.Contains(t, result.Record.SourceImage, "processed/")
	assert.Equal(t, "BUY AAPL 100 @ 150.25 PnL: +38.07", result.Record.RawText)

	records, err := fx.tradeLog.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.Record.ID, records[0].ID)
}

func TestProcessUploadAnalyzerFieldsWin(t *testing.T) {
	fx := newFixture(t)
	sym := "SOLUSD"
	pnl := 42.0
	fx.analyzer.fields = models.TradeFields{Symbol: &sym, Side: models.SideSell, PnL: &pnl}

	result, err := fx.service.ProcessUpload(context.Background(), strings.NewReader("x"), "trade.png")
	require.NoError(t, err)

	// Analyzer output takes precedence; the pattern parser only fills gaps.
	assert.Equal(t, "SOLUSD", *result.Record.Symbol)
	assert.Equal(t, models.SideSell, result.Record.Side)
	assert.Equal(t, 42.0, *result.Record.PnL)
	// Quantity was not in the analyzer output, so the parser supplied it.
	require.NotNil(t, result.Record.Quantity)
	assert.Equal(t, 100.0, *result.Record.Quantity)
}

func TestProcessUploadAnalyzerErrorDegrades(t *testing.T) {
	fx := newFixture(t)
	fx.analyzer.err = errors.New("model unavailable")

	result, err := fx.service.ProcessUpload(context.Background(), strings.NewReader("x"), "trade.png")
	require.NoError(t, err)
	// Pattern matching alone still extracted the fields.
	require.NotNil(t, result.Record.Symbol)
	assert.Equal(t, "AAPL", *result.Record.Symbol)
}

func TestProcessUploadOcrHardFailure(t *testing.T) {
	fx := newFixture(t)
	fx.engine.result = ocr.Result{}
	fx.engine.err = errors.New("ocr service unreachable")

	_, err := fx.service.ProcessUpload(context.Background(), strings.NewReader("x"), "trade.png")
	assert.ErrorIs(t, err, ErrOcrFailed)

	// No record for a failed extraction.
	records, readErr := fx.tradeLog.ReadAll()
	require.NoError(t, readErr)
	assert.Empty(t, records)

	// And no orphaned image either: stored images and log entries stay 1:1.
	images, imgErr := fx.service.ListImages()
	require.NoError(t, imgErr)
	assert.Empty(t, images)
}

func TestProcessUploadEmptyOcrStillStoresRecord(t *testing.T) {
	fx := newFixture(t)
	fx.engine.result = ocr.Result{}
	fx.engine.err = ocr.ErrEmptyText

	result, err := fx.service.ProcessUpload(context.Background(), strings.NewReader("x"), "blank.png")
	require.NoError(t, err)

	// Unparseable upload still yields one record with null fields, keeping
	// uploads and log entries 1:1.
	assert.Nil(t, result.Record.Symbol)
	assert.Nil(t, result.Record.PnL)
	assert.Equal(t, models.SideUnknown, result.Record.Side)
	assert.Empty(t, result.Record.RawText)

	records, err := fx.tradeLog.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestProcessPath(t *testing.T) {
	fx := newFixture(t)

	dir := t.TempDir()
	imagePath := filepath.Join(dir, "existing.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("png-bytes"), 0o644))

	result, err := fx.service.ProcessPath(context.Background(), imagePath)
	require.NoError(t, err)
	assert.Contains(t, result.Record.SourceImage, "existing.png")

	_, err = fx.service.ProcessPath(context.Background(), filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, ErrImageUnreadable)
}

func TestProcessDirectory(t *testing.T) {
	fx := newFixture(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.png"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.jpg"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("c"), 0o644))

	result, err := fx.service.ProcessDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	records, err := fx.tradeLog.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestProcessDirectoryEmpty(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.ProcessDirectory(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrImageUnreadable)
}

func TestGetStatsCachedAndInvalidated(t *testing.T) {
	fx := newFixture(t)

	snapshot, err := fx.service.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.TotalTrades)

	// Cached: a direct append without invalidation is not visible yet.
	_, found := fx.cache.Get("agg_stats_snapshot")
	assert.True(t, found)

	_, err = fx.service.ProcessUpload(context.Background(), strings.NewReader("x"), "trade.png")
	require.NoError(t, err)

	// The append invalidated the snapshot.
	_, found = fx.cache.Get("agg_stats_snapshot")
	assert.False(t, found)

	snapshot, err = fx.service.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.TotalTrades)
	require.NotNil(t, snapshot.WinRate)
	assert.Equal(t, 1.0, *snapshot.WinRate)
}

func TestSearchTrades(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.ProcessUpload(context.Background(), strings.NewReader("x"), "trade.png")
	require.NoError(t, err)

	matches, err := fx.service.SearchTrades(models.SearchQuery{Symbol: "aapl"})
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	matches, err = fx.service.SearchTrades(models.SearchQuery{Symbol: "TSLA"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRawLogAndListImages(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.ProcessUpload(context.Background(), strings.NewReader("x"), "trade.png")
	require.NoError(t, err)

	raw, err := fx.service.RawLog()
	require.NoError(t, err)
	assert.Contains(t, raw, `"symbol":"AAPL"`)

	// Every upload lands twice: the dated processed copy and the raw upload.
	images, err := fx.service.ListImages()
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Contains(t, images[0].Path, "processed/")
	assert.Contains(t, images[0].Filename, "trade.png")
	assert.Contains(t, images[1].Path, "uploads/")
	assert.Contains(t, images[1].Filename, "trade.png")
}

func TestSearchTradesCached(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.ProcessUpload(context.Background(), strings.NewReader("x"), "trade.png")
	require.NoError(t, err)

	query := models.SearchQuery{Symbol: "AAPL"}
	matches, err := fx.service.SearchTrades(query)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// A direct append bypasses invalidation, so the cached result holds.
	sym := "AAPL"
	require.NoError(t, fx.tradeLog.Append(models.TradeRecord{ID: "deadbeef", Symbol: &sym, Side: models.SideBuy}))
	matches, err = fx.service.SearchTrades(query)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// An upload through the service flushes the cache.
	_, err = fx.service.ProcessUpload(context.Background(), strings.NewReader("x"), "trade.png")
	require.NoError(t, err)
	matches, err = fx.service.SearchTrades(query)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}
