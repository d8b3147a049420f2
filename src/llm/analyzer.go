package llm

import (
	"context"

	"github.com/username/tradelens/backend/src/models"
)

// Analyzer structures raw OCR text into trade fields. Implementations must
// degrade instead of failing: text the model cannot structure yields zero
// fields, not an error, so the pattern parser can still run.
type Analyzer interface {
	Analyze(ctx context.Context, rawText, imageName string) (models.TradeFields, error)
}

// NoopAnalyzer is used when no model API key is configured.
type NoopAnalyzer struct{}

var _ Analyzer = (*NoopAnalyzer)(nil)

func NewNoopAnalyzer() *NoopAnalyzer { return &NoopAnalyzer{} }

func (n *NoopAnalyzer) Analyze(ctx context.Context, rawText, imageName string) (models.TradeFields, error) {
	return models.TradeFields{Side: models.SideUnknown}, nil
}
