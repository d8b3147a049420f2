package parsers

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/username/tradelens/backend/src/models"
)

// fieldMatcher is one named pattern for one field. Matchers for a field are
// tried in order and the first match wins; later matchers for an already
// populated field are skipped. Keeping each rule separate (instead of one
// regex blob) keeps failure modes inspectable and unit-testable.
type fieldMatcher struct {
	name  string
	re    *regexp.Regexp
	apply func(f *models.TradeFields, groups []string)
}

type fieldParserImpl struct {
	matchers []fieldMatcher
}

var _ Parser = (*fieldParserImpl)(nil)

// NewFieldParser builds the ordered matcher list.
func NewFieldParser() Parser {
	return &fieldParserImpl{matchers: buildMatchers()}
}

// Parse applies every matcher to the text. Fields are independent: one field
// failing to match never blocks the others, and unrecognized text yields an
// all-nil result rather than an error.
func (p *fieldParserImpl) Parse(text string) models.TradeFields {
	fields := models.TradeFields{Side: models.SideUnknown}
	for _, m := range p.matchers {
		if groups := m.re.FindStringSubmatch(text); groups != nil {
			m.apply(&fields, groups)
		}
	}
	return fields
}

func buildMatchers() []fieldMatcher {
	return []fieldMatcher{
		// --- side ---
		{
			name: "side/keyword",
			re:   regexp.MustCompile(`(?i)\b(buy|bought|long|sell|sold|short)\b`),
			apply: func(f *models.TradeFields, g []string) {
				if f.Side != models.SideUnknown {
					return
				}
				switch strings.ToLower(g[1]) {
				case "buy", "bought", "long":
					f.Side = models.SideBuy
				case "sell", "sold", "short":
					f.Side = models.SideSell
				}
			},
		},
		// --- symbol ---
		{
			name: "symbol/after-side",
			re:   regexp.MustCompile(`(?i)\b(?:buy|bought|long|sell|sold|short)\s+([A-Za-z]{1,10}(?:/[A-Za-z]{2,6})?)\b`),
			apply: func(f *models.TradeFields, g []string) {
				setSymbol(f, g[1])
			},
		},
		{
			name: "symbol/quote-suffix",
			re:   regexp.MustCompile(`\b([A-Z]{2,10}(?:USDT|USD|EUR|PERP|BTC))\b`),
			apply: func(f *models.TradeFields, g []string) {
				setSymbol(f, g[1])
			},
		},
		{
			name: "symbol/dollar-prefix",
			re:   regexp.MustCompile(`\$([A-Za-z]{1,6})\b`),
			apply: func(f *models.TradeFields, g []string) {
				setSymbol(f, g[1])
			},
		},
		// --- quantity ---
		{
			name: "quantity/labelled",
			re:   regexp.MustCompile(`(?i)\b(?:qty|quantity|size|shares|contracts)[:\s]+([\d,]+(?:\.\d+)?)\b`),
			apply: func(f *models.TradeFields, g []string) {
				setNumber(&f.Quantity, g[1])
			},
		},
		{
			name: "quantity/after-symbol",
			re:   regexp.MustCompile(`(?i)\b(?:buy|bought|long|sell|sold|short)\s+[A-Za-z/]{1,10}\s+([\d,]+(?:\.\d+)?)\b`),
			apply: func(f *models.TradeFields, g []string) {
				setNumber(&f.Quantity, g[1])
			},
		},
		// --- price ---
		{
			name: "price/at-sign",
			re:   regexp.MustCompile(`@\s*\$?([\d,]+(?:\.\d+)?)`),
			apply: func(f *models.TradeFields, g []string) {
				setNumber(&f.Price, g[1])
			},
		},
		{
			name: "price/labelled",
			re:   regexp.MustCompile(`(?i)\b(?:price|filled(?:\s+at)?|avg(?:\.|erage)?(?:\s+price)?)[:\s]+\$?([\d,]+(?:\.\d+)?)\b`),
			apply: func(f *models.TradeFields, g []string) {
				setNumber(&f.Price, g[1])
			},
		},
		// --- entry / exit (common on chart position overlays) ---
		{
			name: "entry/labelled",
			re:   regexp.MustCompile(`(?i)\bentry(?:\s*price)?[:\s]+\$?([\d,]+(?:\.\d+)?)\b`),
			apply: func(f *models.TradeFields, g []string) {
				setNumber(&f.EntryPrice, g[1])
			},
		},
		{
			// "closed" alone is prose ("closed 2025-07-06 ..."); a price
			// only follows the exit label or an explicit close-price form.
			name: "exit/labelled",
			re:   regexp.MustCompile(`(?i)\b(?:exit(?:\s*price)?|close\s*price|closed?\s+at)[:\s]+\$?([\d,]+(?:\.\d+)?)\b`),
			apply: func(f *models.TradeFields, g []string) {
				setNumber(&f.ExitPrice, g[1])
			},
		},
		// --- pnl ---
		{
			name: "pnl/labelled",
			re:   regexp.MustCompile(`(?i)\b(?:pnl|p[/&]l|profit|loss)[:\s]*([+-]?\$?[\d,]+(?:\.\d+)?)(?:\s*(?:usd|usdt|eur))?\b([^%]|$)`),
			apply: func(f *models.TradeFields, g []string) {
				if setNumber(&f.PnL, g[1]) && f.PnL != nil {
					// "Loss 12.50" without an explicit sign means a negative outcome
					if *f.PnL > 0 && !strings.ContainsAny(g[1], "+-") && lossContext(g[0]) {
						v := -*f.PnL
						f.PnL = &v
					}
				}
			},
		},
		{
			name: "pnl/signed-currency",
			re:   regexp.MustCompile(`([+-][\d,]+(?:\.\d+)?)\s*(?:usd|usdt|eur|USD|USDT|EUR)\b`),
			apply: func(f *models.TradeFields, g []string) {
				setNumber(&f.PnL, g[1])
			},
		},
		// --- timestamp ---
		{
			name: "timestamp/datetime",
			re:   regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}(?::\d{2})?)\b`),
			apply: func(f *models.TradeFields, g []string) {
				setTimestamp(f, g[1], "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02T15:04")
			},
		},
		{
			name: "timestamp/slash-datetime",
			re:   regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}(?::\d{2})?)\b`),
			apply: func(f *models.TradeFields, g []string) {
				setTimestamp(f, g[1], "02/01/2006 15:04:05", "02/01/2006 15:04")
			},
		},
		{
			name: "timestamp/date-only",
			re:   regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`),
			apply: func(f *models.TradeFields, g []string) {
				setTimestamp(f, g[1], "2006-01-02")
			},
		},
		// --- timeframe ---
		{
			name: "timeframe/compact",
			re:   regexp.MustCompile(`(?i)\b([1-9]\d{0,2}(?:m|min|h|d|w))\b`),
			apply: func(f *models.TradeFields, g []string) {
				if f.Timeframe == nil {
					tf := strings.ToLower(g[1])
					f.Timeframe = &tf
				}
			},
		},
	}
}

func setSymbol(f *models.TradeFields, raw string) {
	if f.Symbol != nil {
		return
	}
	sym := strings.ToUpper(raw)
	f.Symbol = &sym
}

// setNumber parses a locale-agnostic numeric string into target.
// Malformed numeric text leaves the target nil; it is never an error.
func setNumber(target **float64, raw string) bool {
	if *target != nil {
		return false
	}
	v, ok := parseNumber(raw)
	if !ok {
		return false
	}
	*target = &v
	return true
}

// parseNumber strips currency symbols and thousands separators before
// parsing. Mirrors the lenient cleanup the upstream extractor applies to
// pnl amounts.
func parseNumber(raw string) (float64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func setTimestamp(f *models.TradeFields, raw string, layouts ...string) {
	if f.Timestamp != nil {
		return
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			ts := t.Format(time.RFC3339)
			f.Timestamp = &ts
			return
		}
	}
}

func lossContext(match string) bool {
	return strings.Contains(strings.ToLower(match), "loss")
}
