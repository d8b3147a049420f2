package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradelens/backend/src/models"
)

func floatPtr(v float64) *float64 { return &v }
func strPtr(s string) *string     { return &s }

func pnlRecord(id, ts string, pnl *float64) models.TradeRecord {
	return models.TradeRecord{
		ID:        id,
		Timestamp: ts,
		Side:      models.SideUnknown,
		PnL:       pnl,
	}
}

func TestComputeEmptyLog(t *testing.T) {
	snapshot := NewStatsProcessor().Compute(nil)

	assert.Equal(t, 0, snapshot.TotalTrades)
	assert.Equal(t, 0.0, snapshot.TotalPnL)
	assert.Nil(t, snapshot.WinRate)
	assert.Nil(t, snapshot.BestTrade)
	assert.Nil(t, snapshot.WorstTrade)
	assert.Empty(t, snapshot.PnLHistory)
	assert.NotNil(t, snapshot.PnLHistory, "history must serialize as [], not null")
}

func TestComputeMixedPnL(t *testing.T) {
	records := []models.TradeRecord{
		pnlRecord("a", "2025-07-01T10:00:00Z", floatPtr(10)),
		pnlRecord("b", "2025-07-02T10:00:00Z", floatPtr(-5)),
		pnlRecord("c", "2025-07-03T10:00:00Z", nil),
	}

	snapshot := NewStatsProcessor().Compute(records)

	assert.Equal(t, 3, snapshot.TotalTrades)
	assert.Equal(t, 5.0, snapshot.TotalPnL)
	require.NotNil(t, snapshot.WinRate)
	assert.Equal(t, 0.5, *snapshot.WinRate)
	require.NotNil(t, snapshot.BestTrade)
	assert.Equal(t, 10.0, *snapshot.BestTrade)
	require.NotNil(t, snapshot.WorstTrade)
	assert.Equal(t, -5.0, *snapshot.WorstTrade)

	// Records without pnl are counted in totals but not in the series.
	require.Len(t, snapshot.PnLHistory, 2)
	assert.Equal(t, 10.0, snapshot.PnLHistory[0].PnL)
	assert.Equal(t, 10.0, snapshot.PnLHistory[0].Cumulative)
	assert.Equal(t, -5.0, snapshot.PnLHistory[1].PnL)
	assert.Equal(t, 5.0, snapshot.PnLHistory[1].Cumulative)
}

func TestComputeNoPnLAnywhere(t *testing.T) {
	records := []models.TradeRecord{
		pnlRecord("a", "2025-07-01T10:00:00Z", nil),
		pnlRecord("b", "2025-07-02T10:00:00Z", nil),
	}

	snapshot := NewStatsProcessor().Compute(records)
	assert.Equal(t, 2, snapshot.TotalTrades)
	assert.Nil(t, snapshot.WinRate)
	assert.Nil(t, snapshot.BestTrade)
	assert.Nil(t, snapshot.WorstTrade)
	assert.Empty(t, snapshot.PnLHistory)
}

func TestComputeHistoryOrderedByTimestamp(t *testing.T) {
	// Deliberately appended out of chronological order.
	records := []models.TradeRecord{
		pnlRecord("late", "2025-07-03T10:00:00Z", floatPtr(1)),
		pnlRecord("early", "2025-07-01T10:00:00Z", floatPtr(2)),
		pnlRecord("middle", "2025-07-02T10:00:00Z", floatPtr(3)),
	}

	snapshot := NewStatsProcessor().Compute(records)
	require.Len(t, snapshot.PnLHistory, 3)
	assert.Equal(t, "2025-07-01T10:00:00Z", snapshot.PnLHistory[0].Timestamp)
	assert.Equal(t, "2025-07-02T10:00:00Z", snapshot.PnLHistory[1].Timestamp)
	assert.Equal(t, "2025-07-03T10:00:00Z", snapshot.PnLHistory[2].Timestamp)
	assert.Equal(t, 2.0, snapshot.PnLHistory[0].Cumulative)
	assert.Equal(t, 5.0, snapshot.PnLHistory[1].Cumulative)
	assert.Equal(t, 6.0, snapshot.PnLHistory[2].Cumulative)
}

func TestComputeTradesBySymbol(t *testing.T) {
	rec := func(sym *string) models.TradeRecord {
		return models.TradeRecord{ID: "x", Symbol: sym, Side: models.SideUnknown}
	}
	snapshot := NewStatsProcessor().Compute([]models.TradeRecord{
		rec(strPtr("AAPL")),
		rec(strPtr("AAPL")),
		rec(strPtr("TSLA")),
		rec(nil),
	})

	assert.Equal(t, map[string]int{"AAPL": 2, "TSLA": 1}, snapshot.TradesBySymbol)
}

func TestComputeRounding(t *testing.T) {
	records := []models.TradeRecord{
		pnlRecord("a", "2025-07-01T10:00:00Z", floatPtr(0.105)),
		pnlRecord("b", "2025-07-02T10:00:00Z", floatPtr(0.204)),
	}
	snapshot := NewStatsProcessor().Compute(records)
	assert.Equal(t, 0.31, snapshot.TotalPnL)
}
