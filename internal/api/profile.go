package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnsupported 当前后端 profile 不提供该视图或操作
var ErrUnsupported = errors.New("not supported by backend profile")

// Profile 后端 API 家族
type Profile string

const (
	// ProfileStandard /api/dashboard, /api/strategies ... 风格的后端
	ProfileStandard Profile = "standard"
	// ProfileMonitor /api/monitor/*, /api/strategy/*, /api/config 风格的后端
	ProfileMonitor Profile = "monitor"
)

// ParseProfile 解析 profile 名
func ParseProfile(s string) (Profile, error) {
	switch Profile(strings.ToLower(strings.TrimSpace(s))) {
	case ProfileStandard:
		return ProfileStandard, nil
	case ProfileMonitor:
		return ProfileMonitor, nil
	default:
		return "", fmt.Errorf("unknown backend profile %q", s)
	}
}

// HealthEndpoint 健康检查端点
const HealthEndpoint = "/health"

var viewEndpoints = map[Profile]map[View][]string{
	ProfileStandard: {
		ViewOverview:   {"/api/dashboard"},
		ViewStrategies: {"/api/strategies"},
		ViewPositions:  {"/api/positions"},
		ViewRisk:       {"/api/risk/metrics"},
		ViewSettings:   {"/api/settings"},
	},
	ProfileMonitor: {
		ViewOverview:   {"/api/monitor/overview", "/api/monitor/performance", "/api/monitor/trades"},
		ViewStrategies: {"/api/strategy/list"},
		ViewPositions:  {"/api/monitor/positions"},
		ViewSettings:   {"/api/config"},
	},
}

// Endpoints 视图对应的 GET 端点
func (p Profile) Endpoints(v View) []string {
	return append([]string(nil), viewEndpoints[p][v]...)
}

// Supports 是否支持该视图
func (p Profile) Supports(v View) bool {
	return len(viewEndpoints[p][v]) > 0
}

// Views 支持的视图，按展示顺序
func (p Profile) Views() []View {
	var out []View
	for _, v := range AllViews {
		if p.Supports(v) {
			out = append(out, v)
		}
	}
	return out
}

func (p Profile) unsupported(kind ActionKind) error {
	return errors.Wrapf(ErrUnsupported, "%s on %s", kind, p)
}

func seg(s string) string { return url.PathEscape(s) }

// ToggleStrategy 启停策略。standard 后端按当前状态选择 start/pause，monitor 后端直接 toggle。
func (p Profile) ToggleStrategy(s Strategy) (Action, error) {
	if s.ID == "" {
		return Action{}, errors.New("toggle strategy: empty id")
	}
	switch p {
	case ProfileStandard:
		verb := "start"
		if s.IsActive() {
			verb = "pause"
		}
		return newAction(ActionToggleStrategy, http.MethodPost,
			"/api/strategies/"+seg(s.ID)+"/"+verb, nil, ViewStrategies,
			fmt.Sprintf("%s 策略 %s", verb, s.Name)), nil
	case ProfileMonitor:
		return newAction(ActionToggleStrategy, http.MethodPost,
			"/api/strategy/"+seg(s.ID)+"/toggle", nil, ViewStrategies,
			fmt.Sprintf("切换策略 %s", s.Name)), nil
	}
	return Action{}, p.unsupported(ActionToggleStrategy)
}

// StopStrategy 停止策略（仅 standard 后端）
func (p Profile) StopStrategy(s Strategy) (Action, error) {
	if p != ProfileStandard {
		return Action{}, p.unsupported(ActionStopStrategy)
	}
	return newAction(ActionStopStrategy, http.MethodPost,
		"/api/strategies/"+seg(s.ID)+"/stop", nil, ViewStrategies,
		fmt.Sprintf("停止策略 %s", s.Name)), nil
}

// StrategySpec 新建/更新策略的参数
type StrategySpec struct {
	Name   string         `json:"name"`
	Type   string         `json:"type,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// CreateStrategy 新建策略
func (p Profile) CreateStrategy(spec StrategySpec) (Action, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return Action{}, errors.New("create strategy: empty name")
	}
	switch p {
	case ProfileStandard:
		return newAction(ActionCreateStrategy, http.MethodPost, "/api/strategies", spec,
			ViewStrategies, fmt.Sprintf("新建策略 %s", spec.Name)), nil
	case ProfileMonitor:
		cfg := spec.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		return newAction(ActionCreateStrategy, http.MethodPost,
			"/api/strategy/"+seg(spec.Name)+"/create", cfg, ViewStrategies,
			fmt.Sprintf("新建策略 %s", spec.Name)), nil
	}
	return Action{}, p.unsupported(ActionCreateStrategy)
}

// UpdateStrategy 更新策略配置（仅 monitor 后端）
func (p Profile) UpdateStrategy(id string, config map[string]any) (Action, error) {
	if p != ProfileMonitor {
		return Action{}, p.unsupported(ActionUpdateStrategy)
	}
	if id == "" {
		return Action{}, errors.New("update strategy: empty id")
	}
	return newAction(ActionUpdateStrategy, http.MethodPost,
		"/api/strategy/"+seg(id)+"/update", config, ViewStrategies,
		fmt.Sprintf("更新策略 %s", id)), nil
}

// ClosePosition 平仓
func (p Profile) ClosePosition(pos Position) (Action, error) {
	switch p {
	case ProfileStandard:
		if pos.ID == "" {
			return Action{}, errors.New("close position: empty id")
		}
		return newAction(ActionClosePosition, http.MethodPost,
			"/api/positions/"+seg(pos.ID)+"/close", nil, ViewPositions,
			fmt.Sprintf("平仓 %s", pos.Symbol)), nil
	case ProfileMonitor:
		if pos.Exchange == "" || pos.Symbol == "" {
			return Action{}, errors.New("close position: exchange and symbol required")
		}
		payload := map[string]string{"exchange": pos.Exchange, "symbol": pos.Symbol}
		return newAction(ActionClosePosition, http.MethodPost,
			"/api/monitor/close-position", payload, ViewPositions,
			fmt.Sprintf("平仓 %s %s", pos.Exchange, pos.Symbol)), nil
	}
	return Action{}, p.unsupported(ActionClosePosition)
}

// HandleAlert 处理风控告警（仅 standard 后端）
func (p Profile) HandleAlert(alertID string) (Action, error) {
	if p != ProfileStandard {
		return Action{}, p.unsupported(ActionHandleAlert)
	}
	if alertID == "" {
		return Action{}, errors.New("handle alert: empty id")
	}
	return newAction(ActionHandleAlert, http.MethodPost,
		"/api/risk/alerts/"+seg(alertID)+"/handle", nil, ViewRisk,
		fmt.Sprintf("处理告警 %s", alertID)), nil
}

// SaveRiskSettings 保存风控设置（仅 standard 后端）
func (p Profile) SaveRiskSettings(values map[string]any) (Action, error) {
	if p != ProfileStandard {
		return Action{}, p.unsupported(ActionSaveRiskSettings)
	}
	return newAction(ActionSaveRiskSettings, http.MethodPost, "/api/risk/settings", values,
		ViewRisk, "保存风控设置"), nil
}

// SaveSettings 整体保存设置
func (p Profile) SaveSettings(values map[string]any) (Action, error) {
	switch p {
	case ProfileStandard:
		return newAction(ActionSaveSettings, http.MethodPost, "/api/settings", values,
			ViewSettings, "保存设置"), nil
	case ProfileMonitor:
		return newAction(ActionSaveSettings, http.MethodPost, "/api/config/update", values,
			ViewSettings, "保存配置"), nil
	}
	return Action{}, p.unsupported(ActionSaveSettings)
}

// ResetConfig 恢复默认配置（仅 monitor 后端）
func (p Profile) ResetConfig() (Action, error) {
	if p != ProfileMonitor {
		return Action{}, p.unsupported(ActionResetConfig)
	}
	return newAction(ActionResetConfig, http.MethodPost, "/api/config/reset", nil,
		ViewSettings, "恢复默认配置"), nil
}

// TestExchange 测试交易所连接（仅 standard 后端），不触发刷新
func (p Profile) TestExchange(exchangeID, apiKey, secretKey string) (Action, error) {
	if p != ProfileStandard {
		return Action{}, p.unsupported(ActionTestExchange)
	}
	if exchangeID == "" {
		return Action{}, errors.New("test exchange: empty id")
	}
	payload := map[string]string{"apiKey": apiKey, "secretKey": secretKey}
	return newAction(ActionTestExchange, http.MethodPost,
		"/api/exchanges/"+seg(exchangeID)+"/test", payload, "",
		fmt.Sprintf("测试 %s 连接", exchangeID)), nil
}
