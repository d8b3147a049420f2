package processors

import (
	"math"
	"sort"
	"time"

	"github.com/username/tradelens/backend/src/models"
)

// StatsProcessor derives a StatsSnapshot from trade records. It is pure:
// the snapshot is recomputed deterministically from whatever records it is
// handed, and an empty input yields a zeroed snapshot, never an error.
type StatsProcessor struct{}

func NewStatsProcessor() *StatsProcessor {
	return &StatsProcessor{}
}

func (p *StatsProcessor) Compute(records []models.TradeRecord) models.StatsSnapshot {
	snapshot := models.StatsSnapshot{
		PnLHistory:     []models.PnLPoint{},
		TradesBySymbol: map[string]int{},
	}
	snapshot.TotalTrades = len(records)
	if len(records) == 0 {
		return snapshot
	}

	ordered := make([]models.TradeRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return recordTime(ordered[i]).Before(recordTime(ordered[j]))
	})

	var totalPnL, cumulative float64
	var best, worst *float64
	wins, withPnL := 0, 0

	for _, rec := range ordered {
		if rec.Symbol != nil && *rec.Symbol != "" {
			snapshot.TradesBySymbol[*rec.Symbol]++
		}
		if rec.PnL == nil {
			continue
		}
		pnl := *rec.PnL
		withPnL++
		totalPnL += pnl
		cumulative += pnl
		if pnl > 0 {
			wins++
		}
		if best == nil || pnl > *best {
			v := pnl
			best = &v
		}
		if worst == nil || pnl < *worst {
			v := pnl
			worst = &v
		}
		snapshot.PnLHistory = append(snapshot.PnLHistory, models.PnLPoint{
			Timestamp:  rec.Timestamp,
			PnL:        round2(pnl),
			Cumulative: round2(cumulative),
		})
	}

	snapshot.TotalPnL = round2(totalPnL)
	snapshot.BestTrade = best
	snapshot.WorstTrade = worst
	if withPnL > 0 {
		rate := round2(float64(wins) / float64(withPnL))
		snapshot.WinRate = &rate
	}
	return snapshot
}

// recordTime prefers the trade timestamp, then the logged-at time. Records
// whose timestamps do not parse sort first, keeping the series stable.
func recordTime(rec models.TradeRecord) time.Time {
	layouts := []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	for _, raw := range []string{rec.Timestamp, rec.LoggedAt} {
		if raw == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// round2 rounds a float64 to 2 decimal places.
func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
