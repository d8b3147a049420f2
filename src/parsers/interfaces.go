package parsers

import "github.com/username/tradelens/backend/src/models"

// Parser extracts trade fields from free-form OCR text. Implementations
// never fail: a field that cannot be matched is simply left nil.
type Parser interface {
	Parse(text string) models.TradeFields
}
