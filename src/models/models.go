package models

import "time"

// Side is the direction of a trade as extracted from a screenshot.
type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideUnknown Side = "unknown"
)

// TradeRecord is one parsed trade event. Once appended to the trade log a
// record is never mutated; corrections are new records.
type TradeRecord struct {
	ID            string   `json:"id"`
	Timestamp     string   `json:"timestamp"` // trade time when extracted, upload time otherwise
	Symbol        *string  `json:"symbol"`
	Side          Side     `json:"side"`
	Quantity      *float64 `json:"quantity"`
	Price         *float64 `json:"price"`
	EntryPrice    *float64 `json:"entry_price,omitempty"`
	ExitPrice     *float64 `json:"exit_price,omitempty"`
	PnL           *float64 `json:"pnl"`
	Timeframe     *string  `json:"timeframe,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
	SourceImage   string   `json:"source_image"`
	RawText       string   `json:"raw_text"`
	OcrConfidence *float64 `json:"ocr_confidence,omitempty"`
	LoggedAt      string   `json:"logged_at"`
}

// TradeFields holds the independently optional fields pulled out of OCR text.
// A nil pointer means the field could not be extracted.
type TradeFields struct {
	Symbol     *string
	Side       Side
	Quantity   *float64
	Price      *float64
	EntryPrice *float64
	ExitPrice  *float64
	PnL        *float64
	Timestamp  *string
	Timeframe  *string
	Notes      *string
}

// FillFrom copies fields from other into f where f has no value yet.
// Existing values always win, so callers layer sources by precedence.
func (f *TradeFields) FillFrom(other TradeFields) {
	if f.Symbol == nil {
		f.Symbol = other.Symbol
	}
	if f.Side == "" || f.Side == SideUnknown {
		if other.Side != "" {
			f.Side = other.Side
		}
	}
	if f.Quantity == nil {
		f.Quantity = other.Quantity
	}
	if f.Price == nil {
		f.Price = other.Price
	}
	if f.EntryPrice == nil {
		f.EntryPrice = other.EntryPrice
	}
	if f.ExitPrice == nil {
		f.ExitPrice = other.ExitPrice
	}
	if f.PnL == nil {
		f.PnL = other.PnL
	}
	if f.Timestamp == nil {
		f.Timestamp = other.Timestamp
	}
	if f.Timeframe == nil {
		f.Timeframe = other.Timeframe
	}
	if f.Notes == nil {
		f.Notes = other.Notes
	}
}

// UploadMetadata is the upload context merged into a record alongside the
// parsed fields.
type UploadMetadata struct {
	Filename      string
	StoredPath    string // relative path under the data root, e.g. processed/2025-07-06/142058_trade.png
	UploadedAt    time.Time
	RawText       string
	OcrConfidence *float64
}

// PnLPoint is one entry of the stats time series.
type PnLPoint struct {
	Timestamp  string  `json:"timestamp"`
	PnL        float64 `json:"pnl"`
	Cumulative float64 `json:"cumulative"`
}

// StatsSnapshot is derived from the full trade log on demand; it is never
// persisted.
type StatsSnapshot struct {
	TotalTrades    int            `json:"total_trades"`
	TotalPnL       float64        `json:"total_pnl"`
	WinRate        *float64       `json:"win_rate"` // nil when no record carries a pnl
	BestTrade      *float64       `json:"best_trade"`
	WorstTrade     *float64       `json:"worst_trade"`
	PnLHistory     []PnLPoint     `json:"pnl_history"`
	TradesBySymbol map[string]int `json:"trades_by_symbol"`
}

// SearchQuery filters trade records. Zero values mean "no constraint";
// Limit <= 0 falls back to the default of 10.
type SearchQuery struct {
	Query  string `json:"query"`
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	From   string `json:"from"` // inclusive, YYYY-MM-DD
	To     string `json:"to"`   // inclusive, YYYY-MM-DD
	Limit  int    `json:"limit"`
}

// ImageEntry is one gallery item.
type ImageEntry struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}
