package tui

import (
	"context"
	"strings"
	"time"

	"github.com/betbot/botdash/internal/api"
	"github.com/betbot/botdash/internal/dashboard"
	"github.com/betbot/botdash/internal/settings"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "tui")

// Options 界面选项
type Options struct {
	Title          string
	ConfirmActions bool // 写操作先进入待确认状态
}

type changedMsg struct{}

type tickMsg time.Time

// doneMsg 一个异步操作结束；错误已经以通知的形式出现在状态里。
// refetch 是该操作成功后会重新加载的视图。
type doneMsg struct {
	op      string
	refetch api.View
	err     error
}

// Model bubbletea 模型，只读取 dashboard.Client 的快照，写操作都转发给它
type Model struct {
	ctx    context.Context
	client *dashboard.Client
	opts   Options
	snap   dashboard.Snapshot

	width  int
	height int
	cursor map[api.View]int

	// 设置表单的本地草稿，保存时整体提交
	draft   map[string]any
	dirty   map[string]bool
	editing bool
	input   string
}

// NewModel 创建模型
func NewModel(ctx context.Context, client *dashboard.Client, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "botdash"
	}
	return Model{
		ctx:    ctx,
		client: client,
		opts:   opts,
		snap:   client.Snapshot(),
		cursor: make(map[api.View]int),
		dirty:  make(map[string]bool),
	}
}

func (m Model) Init() tea.Cmd {
	active := m.snap.Active
	return tea.Batch(
		m.waitForChange(),
		m.tick(),
		m.run("switch", func(ctx context.Context) error { return m.client.SwitchView(ctx, active) }),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case changedMsg:
		m.refreshSnapshot()
		return m, m.waitForChange()
	case tickMsg:
		m.refreshSnapshot()
		return m, m.tick()
	case doneMsg:
		// 设置被服务端改写后，本地草稿已经过时
		if msg.err == nil && msg.refetch == api.ViewSettings {
			m.draft = nil
			m.dirty = make(map[string]bool)
		}
		if msg.err != nil {
			log.Debugf("%s: %v", msg.op, msg.err)
		}
		m.refreshSnapshot()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) refreshSnapshot() {
	m.snap = m.client.Snapshot()
	if n := m.rows(m.snap.Active); m.cursor[m.snap.Active] >= n {
		m.cursor[m.snap.Active] = max(n-1, 0)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if p, ok := m.snap.Pending.(dashboard.ConfirmPending); ok {
		switch key {
		case "y", "enter":
			return m, m.runFor("confirm", p.Action.Refetch, func(ctx context.Context) error {
				_, err := m.client.Confirm(ctx)
				return err
			})
		case "n", "esc":
			m.client.Cancel()
			m.refreshSnapshot()
		}
		return m, nil
	}

	if m.editing {
		return m.handleEditKey(msg)
	}

	views := m.snap.Profile.Views()
	switch key {
	case "q":
		return m, tea.Quit
	case "1", "2", "3", "4", "5":
		idx := int(key[0] - '1')
		if idx < len(views) {
			return m, m.switchTo(views[idx])
		}
		return m, nil
	case "tab", "shift+tab":
		step := 1
		if key == "shift+tab" {
			step = len(views) - 1
		}
		for i, v := range views {
			if v == m.snap.Active {
				return m, m.switchTo(views[(i+step)%len(views)])
			}
		}
		return m, nil
	case "r":
		return m, m.run("refresh", m.client.Refresh)
	case "up", "k":
		if m.cursor[m.snap.Active] > 0 {
			m.cursor[m.snap.Active]--
		}
		return m, nil
	case "down", "j":
		if m.cursor[m.snap.Active] < m.rows(m.snap.Active)-1 {
			m.cursor[m.snap.Active]++
		}
		return m, nil
	case "C":
		m.client.ClearNotifications()
		m.refreshSnapshot()
		return m, nil
	}
	return m.handleViewKey(key)
}

func (m Model) handleViewKey(key string) (tea.Model, tea.Cmd) {
	profile := m.snap.Profile
	switch m.snap.Active {
	case api.ViewStrategies:
		s, ok := m.selectedStrategy()
		if !ok {
			return m, nil
		}
		switch key {
		case "t", " ":
			return m.act(profile.ToggleStrategy(s))
		case "x":
			return m.act(profile.StopStrategy(s))
		}
	case api.ViewPositions:
		if key == "c" {
			if p, ok := m.selectedPosition(); ok {
				return m.act(profile.ClosePosition(p))
			}
		}
	case api.ViewRisk:
		if key == "h" {
			if a, ok := m.selectedAlert(); ok && !a.Handled() {
				return m.act(profile.HandleAlert(a.ID))
			}
		}
	case api.ViewSettings:
		switch key {
		case "enter", "e":
			f, ok := m.selectedField()
			if !ok || m.settingsValues() == nil {
				return m, nil
			}
			m.editing = true
			m.input = ""
			if f.Kind != settings.KindSecret {
				v, _ := settings.Lookup(m.settingsValues(), f.Path)
				m.input = f.Display(v)
			}
			return m, nil
		case "s":
			values := m.settingsValues()
			if values == nil {
				return m, nil
			}
			values = settings.Clone(values)
			return m, m.runFor("save", api.ViewSettings, func(ctx context.Context) error {
				_, err := m.client.SaveSettings(ctx, values)
				return err
			})
		case "u":
			m.draft = nil
			m.dirty = make(map[string]bool)
			return m, nil
		case "R":
			return m.act(profile.ResetConfig())
		}
	}
	return m, nil
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input = ""
		return m, nil
	case tea.KeyEnter:
		m.editing = false
		f, ok := m.selectedField()
		if !ok {
			return m, nil
		}
		// 密钥输入框初始为空，空输入表示不修改
		if f.Kind == settings.KindSecret && strings.TrimSpace(m.input) == "" {
			m.input = ""
			return m, nil
		}
		v, err := f.Parse(m.input)
		m.input = ""
		if err != nil {
			m.client.Notify(dashboard.LevelError, err.Error())
			m.refreshSnapshot()
			return m, nil
		}
		if m.draft == nil {
			m.draft = settings.Clone(m.bundleValues())
		}
		if err := settings.Set(m.draft, f.Path, v); err != nil {
			m.client.Notify(dashboard.LevelError, err.Error())
			m.refreshSnapshot()
			return m, nil
		}
		m.dirty[f.Path] = true
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

// act 提交一个由 profile 构造出的操作，需要确认时先挂起
func (m Model) act(a api.Action, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.client.Notify(dashboard.LevelError, err.Error())
		m.refreshSnapshot()
		return m, nil
	}
	if m.opts.ConfirmActions {
		_ = m.client.RequestConfirm(a, "")
		m.refreshSnapshot()
		return m, nil
	}
	return m, m.runFor(string(a.Kind), a.Refetch, func(ctx context.Context) error {
		_, err := m.client.SubmitAction(ctx, a)
		return err
	})
}

func (m Model) switchTo(v api.View) tea.Cmd {
	return m.run("switch", func(ctx context.Context) error { return m.client.SwitchView(ctx, v) })
}

func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return m.runFor(op, "", fn)
}

func (m Model) runFor(op string, refetch api.View, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{op: op, refetch: refetch, err: fn(ctx)}
	}
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.client.Changed()
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) data(v api.View) api.ViewData {
	return m.snap.Views[v].Data
}

func (m Model) rows(v api.View) int {
	switch d := m.data(v).(type) {
	case *api.StrategyList:
		return len(d.Strategies)
	case *api.PositionList:
		return len(d.Positions)
	case *api.RiskReport:
		return len(d.Alerts)
	case *api.SettingsBundle:
		return len(m.client.Schema().Fields())
	}
	return 0
}

func (m Model) selectedStrategy() (api.Strategy, bool) {
	list, ok := m.data(api.ViewStrategies).(*api.StrategyList)
	i := m.cursor[api.ViewStrategies]
	if !ok || i >= len(list.Strategies) {
		return api.Strategy{}, false
	}
	return list.Strategies[i], true
}

func (m Model) selectedPosition() (api.Position, bool) {
	list, ok := m.data(api.ViewPositions).(*api.PositionList)
	i := m.cursor[api.ViewPositions]
	if !ok || i >= len(list.Positions) {
		return api.Position{}, false
	}
	return list.Positions[i], true
}

func (m Model) selectedAlert() (api.RiskAlert, bool) {
	r, ok := m.data(api.ViewRisk).(*api.RiskReport)
	i := m.cursor[api.ViewRisk]
	if !ok || i >= len(r.Alerts) {
		return api.RiskAlert{}, false
	}
	return r.Alerts[i], true
}

func (m Model) selectedField() (settings.Field, bool) {
	fields := m.client.Schema().Fields()
	i := m.cursor[api.ViewSettings]
	if i >= len(fields) {
		return settings.Field{}, false
	}
	return fields[i], true
}

func (m Model) bundleValues() map[string]any {
	b, ok := m.data(api.ViewSettings).(*api.SettingsBundle)
	if !ok {
		return nil
	}
	return b.Values
}

// settingsValues 草稿优先，否则是最近一次加载的设置
func (m Model) settingsValues() map[string]any {
	if m.draft != nil {
		return m.draft
	}
	return m.bundleValues()
}

func (m Model) helpLine() string {
	common := "1-5/tab 切换  r 刷新  ↑/↓ 选择  C 清空通知  q 退出"
	var extra []string
	switch m.snap.Active {
	case api.ViewStrategies:
		extra = append(extra, "t 启停")
		if m.snap.Profile == api.ProfileStandard {
			extra = append(extra, "x 停止")
		}
	case api.ViewPositions:
		extra = append(extra, "c 平仓")
	case api.ViewRisk:
		extra = append(extra, "h 处理告警")
	case api.ViewSettings:
		extra = append(extra, "enter 编辑", "s 保存", "u 放弃修改")
		if m.snap.Profile == api.ProfileMonitor {
			extra = append(extra, "R 恢复默认")
		}
	}
	if len(extra) == 0 {
		return common
	}
	return strings.Join(extra, "  ") + "  " + common
}
