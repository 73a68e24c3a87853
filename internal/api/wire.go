package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/botdash/internal/format"
	"github.com/shopspring/decimal"
)

// 两类后端返回的原始结构。数字既可能是 JSON number 也可能是字符串化的 Decimal，
// 统一用 decimal.Decimal 接收（它能解析两种形式）。

// ---- standard profile ----

type stdDashboard struct {
	AccountStats struct {
		TotalValue      decimal.Decimal `json:"totalValue"`
		DayPnL          decimal.Decimal `json:"dayPnL"`
		DayChange       float64         `json:"dayChange"`
		TotalPositions  int             `json:"totalPositions"`
		AvailableMargin decimal.Decimal `json:"availableMargin"`
		RiskLevel       string          `json:"riskLevel"`
		Leverage        float64         `json:"leverage"`
	} `json:"accountStats"`
	Charts struct {
		Equity []struct {
			Date   string          `json:"date"`
			PnL    decimal.Decimal `json:"pnl"`
			Equity decimal.Decimal `json:"equity"`
		} `json:"equity"`
	} `json:"charts"`
	ActiveStrategies []stdStrategy `json:"activeStrategies"`
	RecentTrades     []stdTrade    `json:"recentTrades"`
}

type stdTrade struct {
	Time   flexTime        `json:"time"`
	Symbol string          `json:"symbol"`
	Side   string          `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Profit decimal.Decimal `json:"profit"`
	PnL    decimal.Decimal `json:"pnl"`
}

type stdStrategy struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	Config      map[string]any  `json:"config"`
	TotalTrades int             `json:"totalTrades"`
	WinRate     float64         `json:"winRate"`
	ProfitRate  float64         `json:"profitRate"`
	TotalPnL    decimal.Decimal `json:"totalPnL"`
	DayPnL      decimal.Decimal `json:"dayPnL"`
}

type stdStrategies struct {
	Strategies []stdStrategy `json:"strategies"`
}

type stdPosition struct {
	ID            string          `json:"id"`
	StrategyID    string          `json:"strategyId"`
	Exchange      string          `json:"exchange"`
	Symbol        string          `json:"symbol"`
	Direction     string          `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	EntryPrice    decimal.Decimal `json:"entryPrice"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnL"`
	ROI           float64         `json:"roi"`
	CreatedAt     flexTime        `json:"createdAt"`
}

type stdPositions struct {
	Positions []stdPosition `json:"positions"`
	Stats     struct {
		TotalValue    decimal.Decimal `json:"totalValue"`
		PositionCount int             `json:"positionCount"`
		UnrealizedPnL decimal.Decimal `json:"unrealizedPnL"`
		MarginUsage   float64         `json:"marginUsage"`
		RiskLevel     string          `json:"riskLevel"`
		Leverage      float64         `json:"leverage"`
	} `json:"stats"`
}

type stdRisk struct {
	Metrics struct {
		Overall struct {
			Score      float64  `json:"score"`
			Level      string   `json:"level"`
			UpdateTime flexTime `json:"updateTime"`
		} `json:"overall"`
		Position map[string]float64 `json:"position"`
		Capital  map[string]float64 `json:"capital"`
	} `json:"metrics"`
	Alerts []struct {
		ID        string   `json:"id"`
		Level     string   `json:"level"`
		Title     string   `json:"title"`
		Message   string   `json:"message"`
		Status    string   `json:"status"`
		CreatedAt flexTime `json:"created_at"`
	} `json:"alerts"`
}

// ---- monitor profile ----

type monOverview struct {
	Status           string                     `json:"status"`
	Uptime           string                     `json:"uptime"`
	TotalEquity      map[string]decimal.Decimal `json:"total_equity"`
	DailyPnL         decimal.Decimal            `json:"daily_pnl"`
	MaxDrawdown      decimal.Decimal            `json:"max_drawdown"`
	ActivePositions  int                        `json:"active_positions"`
	TotalTradesToday int                        `json:"total_trades_today"`
}

type monPerformance struct {
	TotalTrades      int             `json:"total_trades"`
	SuccessfulTrades int             `json:"successful_trades"`
	FailedTrades     int             `json:"failed_trades"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	MaxDrawdown      decimal.Decimal `json:"max_drawdown"`
	WinRate          float64         `json:"win_rate"` // 百分数
}

type monTrade struct {
	Time   flexTime        `json:"time"`
	Symbol string          `json:"symbol"`
	Profit decimal.Decimal `json:"profit"`
}

type monPosition struct {
	Exchange     string          `json:"exchange"`
	Symbol       string          `json:"symbol"`
	Side         string          `json:"side"`
	Amount       decimal.Decimal `json:"amount"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	PnL          decimal.Decimal `json:"pnl"`
	Timestamp    *int64          `json:"timestamp"`
}

type monStrategy struct {
	Name        string         `json:"name"`
	IsActive    bool           `json:"is_active"`
	Description string         `json:"description"`
	Config      map[string]any `json:"config"`
}

// Threshold 子指标的中/高风险阈值
type Threshold struct {
	Medium float64
	High   float64
}

// RiskThresholds 风控子指标阈值
var RiskThresholds = map[string]Threshold{
	"leverage":      {Medium: 3, High: 5},
	"concentration": {Medium: 0.2, High: 0.3},
	"volatility":    {Medium: 0.02, High: 0.05},
	"margin_usage":  {Medium: 0.7, High: 0.85},
	"daily_loss":    {Medium: 0.05, High: 0.1},
	"drawdown":      {Medium: 0.1, High: 0.2},
}

var riskMetricOrder = []struct {
	category string
	name     string
}{
	{"position", "leverage"},
	{"position", "concentration"},
	{"position", "volatility"},
	{"capital", "margin_usage"},
	{"capital", "daily_loss"},
	{"capital", "drawdown"},
}

// MetricLevel 按阈值给子指标分级；没有阈值的指标返回 RiskUnknown
func MetricLevel(name string, v float64) format.RiskLevel {
	t, ok := RiskThresholds[name]
	if !ok {
		return format.RiskUnknown
	}
	return format.ThresholdClass(v, t.Medium, t.High)
}

// normalize now 决定 TradesToday 的"今天"
func (w *stdDashboard) normalize(now time.Time) *Overview {
	a := w.AccountStats
	out := &Overview{
		Account: AccountStats{
			TotalValue:      a.TotalValue,
			DayPnL:          a.DayPnL,
			DayChange:       a.DayChange,
			RiskLevel:       format.RiskClassFromLevel(a.RiskLevel),
			Leverage:        a.Leverage,
			TotalPositions:  a.TotalPositions,
			AvailableMargin: a.AvailableMargin,
		},
	}
	for _, p := range w.Charts.Equity {
		out.EquityCurve = append(out.EquityCurve, EquityPoint{Date: p.Date, PnL: p.PnL, Equity: p.Equity})
	}
	for _, s := range w.ActiveStrategies {
		out.Active = append(out.Active, s.normalize())
	}
	for _, t := range w.RecentTrades {
		profit := t.Profit
		if profit.IsZero() {
			profit = t.PnL
		}
		out.Trades = append(out.Trades, Trade{
			Time: t.Time.Time, Symbol: t.Symbol, Side: t.Side,
			Price: t.Price, Amount: t.Amount, Profit: profit,
		})
	}
	out.Account.TradesToday = countToday(out.Trades, now)
	return out
}

func countToday(trades []Trade, now time.Time) int {
	y, m, d := now.Date()
	n := 0
	for _, t := range trades {
		ty, tm, td := t.Time.In(now.Location()).Date()
		if ty == y && tm == m && td == d {
			n++
		}
	}
	return n
}

func (s stdStrategy) normalize() Strategy {
	status := StrategyStatus(strings.ToLower(s.Status))
	switch status {
	case StrategyActive, StrategyPaused, StrategyStopped:
	default:
		status = StrategyStopped
	}
	return Strategy{
		ID:          s.ID,
		Name:        s.Name,
		Type:        s.Type,
		Status:      status,
		Description: s.Description,
		Config:      s.Config,
		Stats: StrategyStats{
			Trades:     s.TotalTrades,
			WinRate:    s.WinRate,
			ProfitRate: s.ProfitRate,
			TotalPnL:   s.TotalPnL,
			DayPnL:     s.DayPnL,
		},
	}
}

func (w *stdStrategies) normalize() *StrategyList {
	out := &StrategyList{Strategies: make([]Strategy, 0, len(w.Strategies))}
	for _, s := range w.Strategies {
		out.Strategies = append(out.Strategies, s.normalize())
	}
	return out
}

func (w *stdPositions) normalize() *PositionList {
	out := &PositionList{
		Positions: make([]Position, 0, len(w.Positions)),
		Stats: PositionStats{
			TotalValue:    w.Stats.TotalValue,
			UnrealizedPnL: w.Stats.UnrealizedPnL,
			Count:         w.Stats.PositionCount,
			MarginUsage:   w.Stats.MarginUsage,
			Leverage:      w.Stats.Leverage,
			RiskLevel:     format.RiskClassFromLevel(w.Stats.RiskLevel),
		},
	}
	for _, p := range w.Positions {
		out.Positions = append(out.Positions, Position{
			ID:           p.ID,
			StrategyID:   p.StrategyID,
			Exchange:     p.Exchange,
			Symbol:       p.Symbol,
			Side:         strings.ToLower(p.Direction),
			Amount:       p.Amount,
			EntryPrice:   p.EntryPrice,
			CurrentPrice: p.CurrentPrice,
			PnL:          p.UnrealizedPnL,
			ROI:          p.ROI,
			OpenedAt:     p.CreatedAt.Time,
		})
	}
	if out.Stats.Count == 0 {
		out.Stats.Count = len(out.Positions)
	}
	return out
}

func (w *stdRisk) normalize() *RiskReport {
	m := w.Metrics
	out := &RiskReport{
		Score:     m.Overall.Score,
		Level:     format.RiskClassFromLevel(m.Overall.Level),
		UpdatedAt: m.Overall.UpdateTime.Time,
	}
	if out.Level == format.RiskUnknown {
		out.Level = format.RiskClass(out.Score)
	}
	groups := map[string]map[string]float64{"position": m.Position, "capital": m.Capital}
	for _, item := range riskMetricOrder {
		v, ok := lookupMetric(groups[item.category], item.name)
		if !ok {
			continue
		}
		out.Metrics = append(out.Metrics, RiskMetric{
			Category: item.category,
			Name:     item.name,
			Value:    v,
			Level:    MetricLevel(item.name, v),
		})
	}
	if v, ok := lookupMetric(m.Capital, "available_margin"); ok {
		out.AvailableMargin = decimal.NewFromFloat(v)
	}
	for _, a := range w.Alerts {
		out.Alerts = append(out.Alerts, RiskAlert{
			ID:      a.ID,
			Level:   format.RiskClassFromLevel(a.Level),
			Title:   a.Title,
			Message: a.Message,
			Status:  a.Status,
			Time:    a.CreatedAt.Time,
		})
	}
	return out
}

// lookupMetric 同时接受 margin_usage 和 marginUsage 两种写法
func lookupMetric(m map[string]float64, name string) (float64, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	want := strings.ReplaceAll(name, "_", "")
	for k, v := range m {
		if strings.EqualFold(strings.ReplaceAll(k, "_", ""), want) {
			return v, true
		}
	}
	return 0, false
}

func normalizeMonitorOverview(o *monOverview, perf *monPerformance, trades []monTrade) *Overview {
	total := decimal.Zero
	for _, v := range o.TotalEquity {
		total = total.Add(v)
	}
	dd, _ := o.MaxDrawdown.Float64()
	out := &Overview{
		Account: AccountStats{
			TotalValue:     total,
			DayPnL:         o.DailyPnL,
			RiskLevel:      MetricLevel("drawdown", dd),
			TotalPositions: o.ActivePositions,
			MaxDrawdown:    o.MaxDrawdown,
			TradesToday:    o.TotalTradesToday,
		},
		Status: o.Status,
		Uptime: parseUptime(o.Uptime),
		Equity: o.TotalEquity,
	}
	if total.IsPositive() {
		out.Account.DayChange = o.DailyPnL.Div(total).InexactFloat64()
	}
	if perf != nil {
		out.Performance = &Performance{
			TotalTrades:      perf.TotalTrades,
			SuccessfulTrades: perf.SuccessfulTrades,
			FailedTrades:     perf.FailedTrades,
			TotalProfit:      perf.TotalProfit,
			MaxDrawdown:      perf.MaxDrawdown,
			WinRate:          perf.WinRate / 100,
		}
	}
	for _, t := range trades {
		out.Trades = append(out.Trades, Trade{Time: t.Time.Time, Symbol: t.Symbol, Profit: t.Profit})
	}
	return out
}

func normalizeMonitorStrategies(list []monStrategy) *StrategyList {
	out := &StrategyList{Strategies: make([]Strategy, 0, len(list))}
	for _, s := range list {
		status := StrategyPaused
		if s.IsActive {
			status = StrategyActive
		}
		out.Strategies = append(out.Strategies, Strategy{
			ID:          s.Name,
			Name:        s.Name,
			Type:        s.Name,
			Status:      status,
			Description: strings.TrimSpace(s.Description),
			Config:      s.Config,
		})
	}
	return out
}

// MonitorPositionID monitor 后端没有持仓 ID，用 exchange:symbol 代替
func MonitorPositionID(exchange, symbol string) string {
	return exchange + ":" + symbol
}

func normalizeMonitorPositions(list []monPosition) *PositionList {
	out := &PositionList{Positions: make([]Position, 0, len(list))}
	total := decimal.Zero
	pnl := decimal.Zero
	for _, p := range list {
		pos := Position{
			ID:           MonitorPositionID(p.Exchange, p.Symbol),
			Exchange:     p.Exchange,
			Symbol:       p.Symbol,
			Side:         strings.ToLower(p.Side),
			Amount:       p.Amount,
			EntryPrice:   p.EntryPrice,
			CurrentPrice: p.CurrentPrice,
			PnL:          p.PnL,
		}
		if p.Timestamp != nil {
			pos.OpenedAt = time.UnixMilli(*p.Timestamp)
		}
		cost := p.Amount.Mul(p.EntryPrice)
		if cost.IsPositive() {
			pos.ROI = p.PnL.Div(cost).InexactFloat64()
		}
		total = total.Add(p.Amount.Mul(p.CurrentPrice))
		pnl = pnl.Add(p.PnL)
		out.Positions = append(out.Positions, pos)
	}
	out.Stats = PositionStats{TotalValue: total, UnrealizedPnL: pnl, Count: len(out.Positions)}
	return out
}

// parseUptime 解析 "2 days, 3:04:05.123456" / "0:05:10" 形式的运行时长
func parseUptime(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var total time.Duration
	if dayPart, rest, ok := strings.Cut(s, ","); ok {
		fields := strings.Fields(dayPart)
		if len(fields) > 0 {
			if days, err := strconv.Atoi(fields[0]); err == nil {
				total += time.Duration(days) * 24 * time.Hour
			}
		}
		s = strings.TrimSpace(rest)
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return total
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	sec, errS := strconv.ParseFloat(parts[2], 64)
	if errH != nil || errM != nil || errS != nil {
		return total
	}
	total += time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	total += time.Duration(sec * float64(time.Second))
	return total
}

// flexTime 接受 RFC3339、无时区的 ISO 时间和毫秒时间戳
type flexTime struct {
	time.Time
}

var flexLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '"' {
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			return err
		}
		t.Time = time.UnixMilli(ms)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range flexLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	// 无法识别的时间不让整个视图失败
	return nil
}
