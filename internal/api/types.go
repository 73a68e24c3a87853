// Package api 是看板后端的类型化客户端：按 profile 把视图和操作映射到 REST 端点，
// 并把两类后端的原始 JSON 归一化成统一的实体。
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/betbot/botdash/internal/format"
	"github.com/betbot/botdash/internal/settings"
	"github.com/shopspring/decimal"
)

// View 看板分区
type View string

const (
	ViewOverview   View = "overview"
	ViewStrategies View = "strategies"
	ViewPositions  View = "positions"
	ViewRisk       View = "risk"
	ViewSettings   View = "settings"
)

// AllViews 展示顺序
var AllViews = []View{ViewOverview, ViewStrategies, ViewPositions, ViewRisk, ViewSettings}

// ParseView 解析视图名
func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllViews {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// Title 视图标题
func (v View) Title() string {
	switch v {
	case ViewOverview:
		return "总览"
	case ViewStrategies:
		return "策略"
	case ViewPositions:
		return "持仓"
	case ViewRisk:
		return "风控"
	case ViewSettings:
		return "设置"
	default:
		return string(v)
	}
}

// ViewData 一个视图的完整快照。实现类型：*Overview, *StrategyList, *PositionList, *RiskReport, *SettingsBundle
type ViewData interface {
	View() View
	viewData()
}

// AccountStats 账户统计
type AccountStats struct {
	TotalValue      decimal.Decimal
	DayPnL          decimal.Decimal
	DayChange       float64 // 比例
	RiskLevel       format.RiskLevel
	Leverage        float64
	TotalPositions  int
	AvailableMargin decimal.Decimal
	MaxDrawdown     decimal.Decimal
	TradesToday     int
}

// Performance 交易表现
type Performance struct {
	TotalTrades      int
	SuccessfulTrades int
	FailedTrades     int
	TotalProfit      decimal.Decimal
	MaxDrawdown      decimal.Decimal
	WinRate          float64 // 比例 0~1
}

// Trade 最近成交
type Trade struct {
	Time   time.Time
	Symbol string
	Side   string
	Price  decimal.Decimal
	Amount decimal.Decimal
	Profit decimal.Decimal
}

// EquityPoint 权益曲线上的一点
type EquityPoint struct {
	Date   string
	PnL    decimal.Decimal
	Equity decimal.Decimal
}

// Overview 总览视图
type Overview struct {
	Account     AccountStats
	Status      string // monitor 后端：running / stopped
	Uptime      time.Duration
	Equity      map[string]decimal.Decimal // 按交易所
	Performance *Performance
	EquityCurve []EquityPoint
	Active      []Strategy
	Trades      []Trade
}

// StrategyStatus 策略状态
type StrategyStatus string

const (
	StrategyActive  StrategyStatus = "active"
	StrategyPaused  StrategyStatus = "paused"
	StrategyStopped StrategyStatus = "stopped"
)

// StrategyStats 策略统计
type StrategyStats struct {
	Trades     int
	WinRate    float64 // 比例
	ProfitRate float64 // 比例
	TotalPnL   decimal.Decimal
	DayPnL     decimal.Decimal
}

// Strategy 策略
type Strategy struct {
	ID          string
	Name        string
	Type        string
	Status      StrategyStatus
	Description string
	Stats       StrategyStats
	Config      map[string]any
}

// IsActive 是否运行中
func (s Strategy) IsActive() bool { return s.Status == StrategyActive }

// StrategyList 策略视图
type StrategyList struct {
	Strategies []Strategy
}

// Find 按 ID 查找
func (l *StrategyList) Find(id string) (Strategy, bool) {
	for _, s := range l.Strategies {
		if s.ID == id {
			return s, true
		}
	}
	return Strategy{}, false
}

// Position 持仓
type Position struct {
	ID           string
	StrategyID   string
	Exchange     string
	Symbol       string
	Side         string
	Amount       decimal.Decimal
	EntryPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
	PnL          decimal.Decimal
	ROI          float64
	OpenedAt     time.Time
}

// PositionStats 持仓汇总
type PositionStats struct {
	TotalValue    decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Count         int
	MarginUsage   float64
	Leverage      float64
	RiskLevel     format.RiskLevel
}

// PositionList 持仓视图
type PositionList struct {
	Positions []Position
	Stats     PositionStats
}

// Find 按 exchange+symbol 查找
func (l *PositionList) Find(exchange, symbol string) (Position, bool) {
	for _, p := range l.Positions {
		if strings.EqualFold(p.Exchange, exchange) && p.Symbol == symbol {
			return p, true
		}
	}
	return Position{}, false
}

// RiskMetric 风控子指标
type RiskMetric struct {
	Category string // position / capital
	Name     string
	Value    float64
	Level    format.RiskLevel
}

// RiskAlert 风控告警
type RiskAlert struct {
	ID      string
	Level   format.RiskLevel
	Title   string
	Message string
	Status  string
	Time    time.Time
}

// Handled 是否已处理
func (a RiskAlert) Handled() bool { return a.Status == "handled" }

// RiskReport 风控视图
type RiskReport struct {
	Score           float64
	Level           format.RiskLevel
	UpdatedAt       time.Time
	Metrics         []RiskMetric
	AvailableMargin decimal.Decimal
	Alerts          []RiskAlert
}

// SettingsBundle 设置视图；monitor 后端额外给出类型化的 Bot 配置
type SettingsBundle struct {
	Values map[string]any
	Bot    *settings.BotConfig
}

func (*Overview) View() View       { return ViewOverview }
func (*StrategyList) View() View   { return ViewStrategies }
func (*PositionList) View() View   { return ViewPositions }
func (*RiskReport) View() View     { return ViewRisk }
func (*SettingsBundle) View() View { return ViewSettings }

func (*Overview) viewData()       {}
func (*StrategyList) viewData()   {}
func (*PositionList) viewData()   {}
func (*RiskReport) viewData()     {}
func (*SettingsBundle) viewData() {}
