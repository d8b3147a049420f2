package processors

import (
	"strings"
	"time"

	"github.com/username/tradelens/backend/src/models"
)

// DefaultSearchLimit caps result sets when the caller does not give a limit.
const DefaultSearchLimit = 10

// SearchProcessor filters trade records against a query. Pure, like the
// stats processor: it never touches the log itself.
type SearchProcessor struct{}

func NewSearchProcessor() *SearchProcessor {
	return &SearchProcessor{}
}

// Filter returns the matching records, newest first, capped at q.Limit
// (DefaultSearchLimit when unset). Every populated constraint must match.
func (p *SearchProcessor) Filter(records []models.TradeRecord, q models.SearchQuery) []models.TradeRecord {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	from, fromOK := parseDay(q.From)
	to, toOK := parseDay(q.To)

	matched := []models.TradeRecord{}
	for _, rec := range records {
		if q.Symbol != "" && (rec.Symbol == nil || !strings.EqualFold(*rec.Symbol, q.Symbol)) {
			continue
		}
		if q.Side != "" && !strings.EqualFold(string(rec.Side), q.Side) {
			continue
		}
		if q.Query != "" && !matchesQuery(rec, q.Query) {
			continue
		}
		if fromOK || toOK {
			ts := recordTime(rec)
			if fromOK && ts.Before(from) {
				continue
			}
			// "to" is inclusive for the whole day
			if toOK && !ts.Before(to.AddDate(0, 0, 1)) {
				continue
			}
		}
		matched = append(matched, rec)
	}

	// newest first
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

func matchesQuery(rec models.TradeRecord, query string) bool {
	needle := strings.ToLower(query)
	haystacks := []string{rec.RawText, string(rec.Side), rec.ID, rec.SourceImage}
	if rec.Symbol != nil {
		haystacks = append(haystacks, *rec.Symbol)
	}
	if rec.Notes != nil {
		haystacks = append(haystacks, *rec.Notes)
	}
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
