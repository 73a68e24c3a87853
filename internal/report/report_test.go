package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/betbot/botdash/internal/api"
	"github.com/betbot/botdash/internal/dashboard"
	"github.com/betbot/botdash/internal/format"
	"github.com/betbot/botdash/internal/settings"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var at = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleOverview() *api.Overview {
	return &api.Overview{
		Account: api.AccountStats{
			TotalValue:     decimal.NewFromInt(125000),
			DayPnL:         decimal.NewFromFloat(-320.5),
			DayChange:      -0.0026,
			RiskLevel:      format.RiskMedium,
			Leverage:       2.5,
			TotalPositions: 2,
		},
		Equity: map[string]decimal.Decimal{"okx": decimal.NewFromInt(80000), "binance": decimal.NewFromInt(45000)},
		Performance: &api.Performance{
			TotalTrades: 40, SuccessfulTrades: 26, FailedTrades: 14,
			TotalProfit: decimal.NewFromInt(1800), WinRate: 0.65,
		},
		Trades: []api.Trade{
			{Time: at, Symbol: "BTCUSDT", Side: "buy", Price: decimal.NewFromInt(62000), Amount: decimal.NewFromFloat(0.1), Profit: decimal.NewFromInt(35)},
			{Time: at.Add(time.Minute), Symbol: "ETHUSDT", Side: "sell", Price: decimal.NewFromInt(3100), Amount: decimal.NewFromInt(2), Profit: decimal.NewFromInt(-12)},
		},
	}
}

func samplePositions() *api.PositionList {
	return &api.PositionList{
		Positions: []api.Position{
			{ID: "p-1", Exchange: "okx", Symbol: "BTC-USDT-SWAP", Side: "long", Amount: decimal.NewFromFloat(0.5),
				EntryPrice: decimal.NewFromInt(60000), CurrentPrice: decimal.NewFromInt(62000), PnL: decimal.NewFromInt(1000), ROI: 0.0333, OpenedAt: at},
		},
		Stats: api.PositionStats{TotalValue: decimal.NewFromInt(31000), UnrealizedPnL: decimal.NewFromInt(1000), Count: 1, RiskLevel: format.RiskLow},
	}
}

func sampleRisk() *api.RiskReport {
	return &api.RiskReport{
		Score: 0.42,
		Level: format.RiskLow,
		Metrics: []api.RiskMetric{
			{Category: "position", Name: "leverage", Value: 2.5, Level: format.RiskLow},
		},
		Alerts: []api.RiskAlert{
			{ID: "a-1", Level: format.RiskHigh, Title: "杠杆过高", Message: "当前杠杆 5.2x", Status: "active", Time: at},
		},
	}
}

func TestWriteView_Tables(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteView(&buf, sampleOverview(), nil))
	out := buf.String()
	assert.Contains(t, out, "ACCOUNT")
	assert.Contains(t, out, "$125,000.00")
	assert.Contains(t, out, "65.00%")
	assert.Contains(t, out, "RECENT TRADES")
	assert.Contains(t, out, "ETHUSDT")

	buf.Reset()
	require.NoError(t, WriteView(&buf, samplePositions(), nil))
	assert.Contains(t, buf.String(), "BTC-USDT-SWAP")

	buf.Reset()
	require.NoError(t, WriteView(&buf, sampleRisk(), nil))
	assert.Contains(t, buf.String(), "杠杆过高")

	buf.Reset()
	list := &api.StrategyList{Strategies: []api.Strategy{{ID: "s-grid", Name: "BTC 网格", Status: api.StrategyActive}}}
	require.NoError(t, WriteView(&buf, list, nil))
	assert.Contains(t, buf.String(), "s-grid")
}

func TestWriteView_SettingsNeedsSchema(t *testing.T) {
	var buf bytes.Buffer
	bundle := &api.SettingsBundle{Values: map[string]any{}}
	assert.Error(t, WriteView(&buf, bundle, nil))
	assert.Error(t, WriteView(&buf, nil, nil))

	schema, err := settings.SchemaFor(string(api.ProfileMonitor))
	require.NoError(t, err)
	require.NoError(t, WriteView(&buf, bundle, schema))
	assert.Contains(t, buf.String(), "SETTINGS")
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dash.xlsx")
	wb := Workbook{
		GeneratedAt: at,
		Overview:    sampleOverview(),
		Positions:   samplePositions(),
		Risk:        sampleRisk(),
	}
	require.NoError(t, WriteXLSX(wb, path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{SheetSummary, SheetPositions, SheetTrades, SheetAlerts}, fx.GetSheetList())

	trades, err := fx.GetRows(SheetTrades)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "Symbol", trades[0][1])
	assert.Equal(t, "BTCUSDT", trades[1][1])
	assert.Equal(t, "ETHUSDT", trades[2][1])

	positions, err := fx.GetRows(SheetPositions)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "p-1", positions[1][0])

	summary, err := fx.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 12:00:00", summary[1][1])
}

func TestWorkbookFromSnapshot(t *testing.T) {
	snap := dashboard.Snapshot{Views: map[api.View]dashboard.ViewState{
		api.ViewOverview:  {View: api.ViewOverview, Data: sampleOverview()},
		api.ViewPositions: {View: api.ViewPositions, Data: samplePositions()},
		api.ViewSettings:  {View: api.ViewSettings},
	}}
	wb := WorkbookFromSnapshot(snap)
	assert.NotNil(t, wb.Overview)
	assert.NotNil(t, wb.Positions)
	assert.Nil(t, wb.Strategies)
	assert.Nil(t, wb.Risk)
}
