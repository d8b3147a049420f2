package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/username/tradelens/backend/src/logger"
	"github.com/username/tradelens/backend/src/models"
)

var jsonl = jsoniter.ConfigCompatibleWithStandardLibrary

// TradeLog is the append-only JSONL record log. Construct one at startup and
// pass it to whatever needs it; appends are serialized through a mutex so
// concurrent requests never interleave partial lines.
type TradeLog struct {
	mu   sync.Mutex
	path string
}

// NewTradeLog ensures the log directory exists. The file itself is created
// lazily on first append.
func NewTradeLog(path string) (*TradeLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating trade log directory: %w", err)
		}
	}
	return &TradeLog{path: path}, nil
}

// Append writes one record as a single line. The line is marshalled up front
// and written in one call under O_APPEND, so a crash mid-append can only lose
// the line being written, never corrupt earlier lines.
func (l *TradeLog) Append(rec models.TradeRecord) error {
	line, err := jsonl.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling trade record %s: %w", rec.ID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening trade log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending trade record %s: %w", rec.ID, err)
	}
	return nil
}

// ForEach streams records in append order. A line that fails to parse is
// logged and skipped; it never aborts the scan.
func (l *TradeLog) ForEach(fn func(models.TradeRecord)) error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening trade log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.TradeRecord
		if err := jsonl.Unmarshal(line, &rec); err != nil {
			logger.L.Warn("Skipping malformed trade log line", "path", l.path, "line", lineNo, "error", err)
			continue
		}
		fn(rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning trade log: %w", err)
	}
	return nil
}

// ReadAll materializes the full log in append order.
func (l *TradeLog) ReadAll() ([]models.TradeRecord, error) {
	var records []models.TradeRecord
	if err := l.ForEach(func(rec models.TradeRecord) {
		records = append(records, rec)
	}); err != nil {
		return nil, err
	}
	return records, nil
}

// RawContent returns the log file verbatim, for the debug endpoint.
// A missing log reads as empty.
func (l *TradeLog) RawContent() (string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading trade log: %w", err)
	}
	return string(data), nil
}
