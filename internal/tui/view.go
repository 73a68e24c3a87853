package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/betbot/botdash/internal/api"
	"github.com/betbot/botdash/internal/dashboard"
	"github.com/betbot/botdash/internal/format"
	"github.com/betbot/botdash/internal/settings"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	activeTab     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("39")).Padding(0, 1)
	inactiveTab   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	greenStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	redStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	yellowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231")).Background(lipgloss.Color("236"))
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("226")).Padding(0, 1)
)

func riskStyle(l format.RiskLevel) lipgloss.Style {
	switch l {
	case format.RiskLow:
		return greenStyle
	case format.RiskMedium:
		return yellowStyle
	case format.RiskHigh:
		return redStyle
	}
	return dimStyle
}

func pnlStyle(d decimal.Decimal) lipgloss.Style {
	switch d.Sign() {
	case 1:
		return greenStyle
	case -1:
		return redStyle
	}
	return lipgloss.NewStyle()
}

func (m Model) View() string {
	width := m.width - 4
	if width < 60 {
		width = 60
	}

	st := m.snap.Views[m.snap.Active]
	body := m.renderBody(st, width)
	panel := lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("39")).
		Padding(0, 1).
		Render(body)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderTabs(),
		m.renderStatus(st),
		panel,
		m.renderNotifications(width),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	title := fmt.Sprintf("%s | %s | %s", m.opts.Title, m.snap.Profile, time.Now().Format("15:04:05"))
	return titleStyle.Padding(0, 1).Render(title)
}

func (m Model) renderTabs() string {
	var tabs []string
	for i, v := range m.snap.Profile.Views() {
		label := fmt.Sprintf("%d %s", i+1, v.Title())
		if v == m.snap.Active {
			tabs = append(tabs, activeTab.Render(label))
		} else {
			tabs = append(tabs, inactiveTab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderStatus(st dashboard.ViewState) string {
	updated := "-"
	if !st.UpdatedAt.IsZero() {
		updated = st.UpdatedAt.Format("15:04:05")
	}
	switch st.Phase {
	case dashboard.PhaseLoading:
		return yellowStyle.Render("加载中... 上次更新 " + updated)
	case dashboard.PhaseError:
		msg := "加载失败"
		if st.Err != nil {
			msg += ": " + st.Err.Error()
		}
		if st.Loaded() {
			msg += " (显示 " + updated + " 的数据)"
		}
		return redStyle.Render(msg)
	case dashboard.PhaseClosed:
		return dimStyle.Render("已关闭")
	case dashboard.PhaseIdle:
		return dimStyle.Render("等待加载")
	}
	return greenStyle.Render("更新于 " + updated)
}

func (m Model) renderBody(st dashboard.ViewState, width int) string {
	switch d := st.Data.(type) {
	case *api.Overview:
		return renderOverview(d, width)
	case *api.StrategyList:
		return renderStrategies(d, m.cursor[api.ViewStrategies], width)
	case *api.PositionList:
		return renderPositions(d, m.cursor[api.ViewPositions], width)
	case *api.RiskReport:
		return renderRisk(d, m.cursor[api.ViewRisk], width)
	case *api.SettingsBundle:
		return m.renderSettings(width)
	}
	if st.Phase == dashboard.PhaseError {
		return "暂无数据"
	}
	return "等待数据..."
}

func section(title string, width int) []string {
	return []string{titleStyle.Render(title), strings.Repeat("─", max(width-4, 1))}
}

func renderOverview(o *api.Overview, width int) string {
	a := o.Account
	lines := section("账户", width)
	lines = append(lines,
		fmt.Sprintf("总资产: %s   今日盈亏: %s (%s)",
			format.Money(a.TotalValue),
			pnlStyle(a.DayPnL).Render(format.SignedMoney(a.DayPnL)),
			format.SignedPercent(a.DayChange)),
		fmt.Sprintf("风险等级: %s   杠杆: %.2fx   持仓数: %d   可用保证金: %s",
			riskStyle(a.RiskLevel).Render(a.RiskLevel.Label()), a.Leverage, a.TotalPositions,
			format.Money(a.AvailableMargin)),
	)
	if o.Status != "" || o.Uptime > 0 {
		lines = append(lines, fmt.Sprintf("状态: %s   运行时长: %s", o.Status, format.Duration(o.Uptime)))
	}
	if len(o.Equity) > 0 {
		names := make([]string, 0, len(o.Equity))
		for k := range o.Equity {
			names = append(names, k)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, n := range names {
			parts = append(parts, fmt.Sprintf("%s %s", n, format.Money(o.Equity[n])))
		}
		lines = append(lines, "权益: "+strings.Join(parts, "  "))
	}

	if p := o.Performance; p != nil {
		lines = append(lines, "")
		lines = append(lines, section("交易表现", width)...)
		lines = append(lines,
			fmt.Sprintf("交易: %d  成功: %d  失败: %d  胜率: %s",
				p.TotalTrades, p.SuccessfulTrades, p.FailedTrades, format.Percent(p.WinRate)),
			fmt.Sprintf("总收益: %s  最大回撤: %s",
				pnlStyle(p.TotalProfit).Render(format.SignedMoney(p.TotalProfit)), p.MaxDrawdown.String()),
		)
	}

	if len(o.Active) > 0 {
		lines = append(lines, "")
		lines = append(lines, section("运行中的策略", width)...)
		for _, s := range o.Active {
			lines = append(lines, fmt.Sprintf("%-16s %-10s 胜率 %s  收益 %s",
				s.Name, s.Type, format.Percent(s.Stats.WinRate), format.SignedPercent(s.Stats.ProfitRate)))
		}
	}

	if len(o.Trades) > 0 {
		lines = append(lines, "")
		lines = append(lines, section("最近成交", width)...)
		for i, t := range o.Trades {
			if i >= 8 {
				lines = append(lines, dimStyle.Render(fmt.Sprintf("  ... 还有 %d 条", len(o.Trades)-8)))
				break
			}
			lines = append(lines, fmt.Sprintf("%s %-14s %-4s %s x %s  %s",
				t.Time.Local().Format("01-02 15:04"), t.Symbol, t.Side,
				t.Price.String(), t.Amount.String(),
				pnlStyle(t.Profit).Render(format.SignedMoney(t.Profit))))
		}
	}
	return strings.Join(lines, "\n")
}

func cursorLine(selected bool, line string) string {
	if selected {
		return selectedStyle.Render("> " + line)
	}
	return "  " + line
}

func statusStyle(s api.StrategyStatus) lipgloss.Style {
	switch s {
	case api.StrategyActive:
		return greenStyle
	case api.StrategyPaused:
		return yellowStyle
	}
	return redStyle
}

func renderStrategies(l *api.StrategyList, cursor, width int) string {
	lines := section("策略", width)
	if len(l.Strategies) == 0 {
		return strings.Join(append(lines, dimStyle.Render("没有策略")), "\n")
	}
	lines = append(lines, dimStyle.Render(fmt.Sprintf("  %-16s %-10s %-8s %6s %8s %9s %12s",
		"名称", "类型", "状态", "交易", "胜率", "收益率", "总盈亏")))
	for i, s := range l.Strategies {
		line := fmt.Sprintf("%-16s %-10s %s %6d %8s %9s %12s",
			s.Name, s.Type, statusStyle(s.Status).Render(fmt.Sprintf("%-8s", s.Status)),
			s.Stats.Trades, format.Percent(s.Stats.WinRate), format.SignedPercent(s.Stats.ProfitRate),
			format.SignedMoney(s.Stats.TotalPnL))
		lines = append(lines, cursorLine(i == cursor, line))
	}
	if s := l.Strategies[min(cursor, len(l.Strategies)-1)]; s.Description != "" {
		lines = append(lines, "", dimStyle.Render(s.Description))
	}
	return strings.Join(lines, "\n")
}

func renderPositions(l *api.PositionList, cursor, width int) string {
	lines := section("持仓", width)
	st := l.Stats
	lines = append(lines, fmt.Sprintf("总价值: %s  未实现盈亏: %s  杠杆: %.2fx  保证金使用: %s  风险: %s",
		format.Money(st.TotalValue), pnlStyle(st.UnrealizedPnL).Render(format.SignedMoney(st.UnrealizedPnL)),
		st.Leverage, format.Percent(st.MarginUsage), riskStyle(st.RiskLevel).Render(st.RiskLevel.Label())))
	lines = append(lines, "")
	if len(l.Positions) == 0 {
		return strings.Join(append(lines, dimStyle.Render("没有持仓")), "\n")
	}
	lines = append(lines, dimStyle.Render(fmt.Sprintf("  %-8s %-14s %-5s %10s %12s %12s %12s %8s",
		"交易所", "交易对", "方向", "数量", "开仓价", "现价", "盈亏", "ROI")))
	for i, p := range l.Positions {
		line := fmt.Sprintf("%-8s %-14s %-5s %10s %12s %12s %s %8s",
			p.Exchange, p.Symbol, p.Side, p.Amount.String(), p.EntryPrice.String(), p.CurrentPrice.String(),
			pnlStyle(p.PnL).Render(fmt.Sprintf("%12s", format.SignedMoney(p.PnL))), format.SignedPercent(p.ROI))
		lines = append(lines, cursorLine(i == cursor, line))
	}
	return strings.Join(lines, "\n")
}

func renderRisk(r *api.RiskReport, cursor, width int) string {
	lines := section("风控", width)
	lines = append(lines, fmt.Sprintf("风险评分: %s  等级: %s  可用保证金: %s",
		format.Percent(r.Score), riskStyle(r.Level).Render(r.Level.Label()), format.Money(r.AvailableMargin)))
	if !r.UpdatedAt.IsZero() {
		lines = append(lines, dimStyle.Render("评估时间 "+r.UpdatedAt.Local().Format("2006-01-02 15:04:05")))
	}
	for _, mt := range r.Metrics {
		lines = append(lines, fmt.Sprintf("  %-9s %-16s %10.4f %s",
			mt.Category, mt.Name, mt.Value, riskStyle(mt.Level).Render(mt.Level.Label())))
	}

	lines = append(lines, "")
	lines = append(lines, section("告警", width)...)
	if len(r.Alerts) == 0 {
		return strings.Join(append(lines, greenStyle.Render("没有告警")), "\n")
	}
	for i, a := range r.Alerts {
		state := riskStyle(a.Level).Render(a.Level.Label())
		if a.Handled() {
			state = dimStyle.Render("已处理")
		}
		line := fmt.Sprintf("[%s] %s %s: %s", state, a.Time.Local().Format("01-02 15:04"), a.Title, a.Message)
		lines = append(lines, cursorLine(i == cursor, line))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSettings(width int) string {
	lines := section("设置", width)
	values := m.settingsValues()
	fields := m.client.Schema().Fields()
	group := ""
	for i, f := range fields {
		if s := f.Section(); s != group {
			group = s
			lines = append(lines, dimStyle.Render("["+s+"]"))
		}
		v, _ := settings.Lookup(values, f.Path)
		text := f.Display(v)
		if m.dirty[f.Path] {
			text += yellowStyle.Render(" *")
		}
		lines = append(lines, cursorLine(i == m.cursor[api.ViewSettings], fmt.Sprintf("%-20s %s", f.Label, text)))
	}
	if len(m.dirty) > 0 {
		lines = append(lines, "", yellowStyle.Render(fmt.Sprintf("%d 项未保存，按 s 保存", len(m.dirty))))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderNotifications(width int) string {
	notes := m.snap.Notifications
	if len(notes) == 0 {
		return ""
	}
	const show = 5
	if len(notes) > show {
		notes = notes[len(notes)-show:]
	}
	lines := make([]string, 0, len(notes))
	for i := len(notes) - 1; i >= 0; i-- {
		n := notes[i]
		style := dimStyle
		switch n.Level {
		case dashboard.LevelSuccess:
			style = greenStyle
		case dashboard.LevelError:
			style = redStyle
		}
		lines = append(lines, style.Render(truncate(fmt.Sprintf("%s %s", n.Time.Format("15:04:05"), n.Message), width)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	if p, ok := m.snap.Pending.(dashboard.ConfirmPending); ok {
		return promptStyle.Render(p.Prompt + " (y/n)")
	}
	if m.editing {
		f, _ := m.selectedField()
		return promptStyle.Render(fmt.Sprintf("%s: %s_", f.Label, m.input)) + dimStyle.Render("  enter 确认  esc 取消")
	}
	return dimStyle.Render(m.helpLine())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
