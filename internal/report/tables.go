package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/betbot/botdash/internal/api"
	"github.com/betbot/botdash/internal/format"
	"github.com/betbot/botdash/internal/settings"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"
)

// WriteView 把一个视图的快照渲染成表格写到 w。settings 视图需要 schema 决定字段和打码。
func WriteView(w io.Writer, data api.ViewData, schema *settings.Schema) error {
	var tables []table.Writer
	switch d := data.(type) {
	case *api.Overview:
		tables = overviewTables(d)
	case *api.StrategyList:
		tables = []table.Writer{strategiesTable(d)}
	case *api.PositionList:
		tables = []table.Writer{positionsTable(d)}
	case *api.RiskReport:
		tables = riskTables(d)
	case *api.SettingsBundle:
		if schema == nil {
			return errors.New("settings table needs a schema")
		}
		tables = []table.Writer{settingsTable(d, schema)}
	case nil:
		return errors.New("no data")
	default:
		return errors.Errorf("unsupported view data %T", data)
	}
	for _, t := range tables {
		t.SetOutputMirror(w)
		t.Render()
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

func overviewTables(o *api.Overview) []table.Writer {
	a := o.Account
	t := newTable("ACCOUNT")
	t.AppendRows([]table.Row{
		{"总资产", format.Money(a.TotalValue)},
		{"今日盈亏", fmt.Sprintf("%s (%s)", format.SignedMoney(a.DayPnL), format.SignedPercent(a.DayChange))},
		{"风险等级", a.RiskLevel.Label()},
		{"杠杆", fmt.Sprintf("%.2fx", a.Leverage)},
		{"持仓数", a.TotalPositions},
		{"可用保证金", format.Money(a.AvailableMargin)},
	})
	if o.Status != "" {
		t.AppendRow(table.Row{"状态", o.Status})
	}
	if o.Uptime > 0 {
		t.AppendRow(table.Row{"运行时长", format.Duration(o.Uptime)})
	}
	names := make([]string, 0, len(o.Equity))
	for k := range o.Equity {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, n := range names {
		t.AppendRow(table.Row{"权益 " + n, format.Money(o.Equity[n])})
	}
	if p := o.Performance; p != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"总交易", p.TotalTrades},
			{"成功/失败", fmt.Sprintf("%d / %d", p.SuccessfulTrades, p.FailedTrades)},
			{"胜率", format.Percent(p.WinRate)},
			{"总收益", format.SignedMoney(p.TotalProfit)},
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 12, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignRight},
	})

	out := []table.Writer{t}
	if len(o.Trades) > 0 {
		out = append(out, tradesTable(o.Trades))
	}
	return out
}

func tradesTable(trades []api.Trade) table.Writer {
	t := newTable("RECENT TRADES")
	t.AppendHeader(table.Row{"时间", "交易对", "方向", "价格", "数量", "盈亏"})
	for _, tr := range trades {
		t.AppendRow(table.Row{
			tr.Time.Local().Format("2006-01-02 15:04:05"), tr.Symbol, tr.Side,
			tr.Price.String(), tr.Amount.String(), format.SignedMoney(tr.Profit),
		})
	}
	t.SetColumnConfigs(rightAlign(4, 5, 6))
	return t
}

func strategiesTable(l *api.StrategyList) table.Writer {
	t := newTable("STRATEGIES")
	t.AppendHeader(table.Row{"ID", "名称", "类型", "状态", "交易", "胜率", "收益率", "总盈亏"})
	for _, s := range l.Strategies {
		t.AppendRow(table.Row{
			s.ID, s.Name, s.Type, string(s.Status), s.Stats.Trades,
			format.Percent(s.Stats.WinRate), format.SignedPercent(s.Stats.ProfitRate),
			format.SignedMoney(s.Stats.TotalPnL),
		})
	}
	t.SetColumnConfigs(rightAlign(5, 6, 7, 8))
	return t
}

func positionsTable(l *api.PositionList) table.Writer {
	t := newTable("POSITIONS")
	t.AppendHeader(table.Row{"交易所", "交易对", "方向", "数量", "开仓价", "现价", "盈亏", "ROI"})
	for _, p := range l.Positions {
		t.AppendRow(table.Row{
			p.Exchange, p.Symbol, p.Side, p.Amount.String(), p.EntryPrice.String(),
			p.CurrentPrice.String(), format.SignedMoney(p.PnL), format.SignedPercent(p.ROI),
		})
	}
	s := l.Stats
	t.AppendFooter(table.Row{"", "", "", "", "", "合计 " + format.Money(s.TotalValue), format.SignedMoney(s.UnrealizedPnL), s.RiskLevel.Label()})
	t.SetColumnConfigs(rightAlign(4, 5, 6, 7, 8))
	return t
}

func riskTables(r *api.RiskReport) []table.Writer {
	t := newTable(fmt.Sprintf("RISK  %s  %s", format.Percent(r.Score), r.Level.Label()))
	t.AppendHeader(table.Row{"分类", "指标", "数值", "等级"})
	for _, m := range r.Metrics {
		t.AppendRow(table.Row{m.Category, m.Name, fmt.Sprintf("%.4f", m.Value), m.Level.Label()})
	}
	t.AppendFooter(table.Row{"", "可用保证金", format.Money(r.AvailableMargin), ""})
	t.SetColumnConfigs(rightAlign(3))

	alerts := newTable("ALERTS")
	alerts.AppendHeader(table.Row{"ID", "等级", "标题", "内容", "状态", "时间"})
	for _, a := range r.Alerts {
		alerts.AppendRow(table.Row{
			a.ID, a.Level.Label(), a.Title, a.Message, a.Status, a.Time.Local().Format("2006-01-02 15:04"),
		})
	}
	return []table.Writer{t, alerts}
}

func settingsTable(b *api.SettingsBundle, schema *settings.Schema) table.Writer {
	t := newTable("SETTINGS " + schema.Name())
	t.AppendHeader(table.Row{"字段", "名称", "值"})
	for _, f := range schema.Fields() {
		v, _ := settings.Lookup(b.Values, f.Path)
		t.AppendRow(table.Row{f.Path, f.Label, f.Display(v)})
	}
	return t
}

func rightAlign(cols ...int) []table.ColumnConfig {
	out := make([]table.ColumnConfig, 0, len(cols))
	for _, c := range cols {
		out = append(out, table.ColumnConfig{Number: c, Align: text.AlignRight})
	}
	return out
}
