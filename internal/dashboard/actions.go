package dashboard

import (
	"context"
	"fmt"

	"github.com/betbot/botdash/internal/api"
	"github.com/betbot/botdash/internal/settings"
	sdkhttp "github.com/betbot/botdash/pkg/sdk/http"
	"github.com/pkg/errors"
)

// SubmitAction 提交一个写操作。成功后刷新一次受影响的视图；
// 任何失败只发出错误通知，不修改本地状态。
func (c *Client) SubmitAction(ctx context.Context, a api.Action) (*api.ActionResult, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if !c.opts.ActionLimiter.Allow() {
		c.metrics.actions.WithLabelValues(string(a.Kind), "throttled").Inc()
		c.notify(LevelError, a.Refetch, fmt.Sprintf("%s: 操作过于频繁，请稍后再试", a.Description))
		return nil, ErrThrottled
	}

	log.Infof("提交操作 %s: %s %s", a.Kind, a.Method, a.Endpoint)
	res, err := c.backend.Submit(ctx, a)
	if err != nil {
		c.metrics.actions.WithLabelValues(string(a.Kind), "error").Inc()
		log.Errorf("操作 %s 失败: %v", a.Kind, err)
		c.notify(LevelError, a.Refetch, fmt.Sprintf("%s失败: %s", a.Description, sdkhttp.MessageOf(err)))
		return res, err
	}

	c.metrics.actions.WithLabelValues(string(a.Kind), "ok").Inc()
	c.notify(LevelSuccess, a.Refetch, fmt.Sprintf("%s: %s", a.Description, res.Message))

	if a.Refetch != "" && c.profile.Supports(a.Refetch) {
		// 不并入操作之前发起的加载，保证看到的是操作之后的数据
		c.group.Forget(string(a.Refetch))
		if lerr := c.LoadView(ctx, a.Refetch); lerr != nil {
			log.Warnf("操作 %s 成功但刷新 %s 失败: %v", a.Kind, a.Refetch, lerr)
		}
	}
	return res, nil
}

// submitBuilt 提交由 profile 构造出的操作；构造失败同样以通知呈现
func (c *Client) submitBuilt(ctx context.Context, a api.Action, err error) (*api.ActionResult, error) {
	if err != nil {
		c.notify(LevelError, c.ActiveView(), err.Error())
		return nil, err
	}
	return c.SubmitAction(ctx, a)
}

// ToggleStrategy 启停策略
func (c *Client) ToggleStrategy(ctx context.Context, s api.Strategy) (*api.ActionResult, error) {
	a, err := c.profile.ToggleStrategy(s)
	return c.submitBuilt(ctx, a, err)
}

// StopStrategy 停止策略
func (c *Client) StopStrategy(ctx context.Context, s api.Strategy) (*api.ActionResult, error) {
	a, err := c.profile.StopStrategy(s)
	return c.submitBuilt(ctx, a, err)
}

// CreateStrategy 新建策略
func (c *Client) CreateStrategy(ctx context.Context, spec api.StrategySpec) (*api.ActionResult, error) {
	a, err := c.profile.CreateStrategy(spec)
	return c.submitBuilt(ctx, a, err)
}

// UpdateStrategy 更新策略配置
func (c *Client) UpdateStrategy(ctx context.Context, id string, config map[string]any) (*api.ActionResult, error) {
	a, err := c.profile.UpdateStrategy(id, config)
	return c.submitBuilt(ctx, a, err)
}

// ClosePosition 平仓
func (c *Client) ClosePosition(ctx context.Context, p api.Position) (*api.ActionResult, error) {
	a, err := c.profile.ClosePosition(p)
	return c.submitBuilt(ctx, a, err)
}

// HandleAlert 处理告警
func (c *Client) HandleAlert(ctx context.Context, alertID string) (*api.ActionResult, error) {
	a, err := c.profile.HandleAlert(alertID)
	return c.submitBuilt(ctx, a, err)
}

// SaveRiskSettings 校验后保存风控设置，不合法时不发请求
func (c *Client) SaveRiskSettings(ctx context.Context, values map[string]any) (*api.ActionResult, error) {
	if _, err := c.profile.SaveRiskSettings(nil); err != nil {
		return c.submitBuilt(ctx, api.Action{}, err)
	}
	doc, err := c.validated(settings.RiskSchema(), values)
	if err != nil {
		return nil, err
	}
	a, err := c.profile.SaveRiskSettings(doc)
	return c.submitBuilt(ctx, a, err)
}

// SaveSettings 整体校验后保存设置，不合法时不发请求
func (c *Client) SaveSettings(ctx context.Context, values map[string]any) (*api.ActionResult, error) {
	doc, err := c.validated(c.schema, values)
	if err != nil {
		return nil, err
	}
	a, err := c.profile.SaveSettings(doc)
	return c.submitBuilt(ctx, a, err)
}

func (c *Client) validated(schema *settings.Schema, values map[string]any) (map[string]any, error) {
	if err := schema.Validate(values); err != nil {
		log.Warnf("设置未通过校验: %v", err)
		c.notify(LevelError, c.ActiveView(), err.Error())
		return nil, err
	}
	return schema.Normalize(values)
}

// ResetConfig 恢复默认配置
func (c *Client) ResetConfig(ctx context.Context) (*api.ActionResult, error) {
	a, err := c.profile.ResetConfig()
	return c.submitBuilt(ctx, a, err)
}

// TestExchange 测试交易所连接
func (c *Client) TestExchange(ctx context.Context, exchangeID, apiKey, secretKey string) (*api.ActionResult, error) {
	a, err := c.profile.TestExchange(exchangeID, apiKey, secretKey)
	return c.submitBuilt(ctx, a, err)
}

// RequestConfirm 挂起一个操作等待确认，覆盖之前未决的操作
func (c *Client) RequestConfirm(a api.Action, prompt string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if prompt == "" {
		prompt = a.Description + "?"
	}
	c.pending = ConfirmPending{Action: a, Prompt: prompt}
	c.mu.Unlock()
	c.changed.Emit()
	return nil
}

// Pending 当前待确认的操作
func (c *Client) Pending() PendingAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Confirm 提交待确认的操作
func (c *Client) Confirm(ctx context.Context) (*api.ActionResult, error) {
	c.mu.Lock()
	p, ok := c.pending.(ConfirmPending)
	c.pending = NoPending{}
	c.mu.Unlock()
	if !ok {
		return nil, ErrNoPending
	}
	c.changed.Emit()
	return c.SubmitAction(ctx, p.Action)
}

// Cancel 放弃待确认的操作
func (c *Client) Cancel() bool {
	c.mu.Lock()
	_, ok := c.pending.(ConfirmPending)
	c.pending = NoPending{}
	c.mu.Unlock()
	if ok {
		c.changed.Emit()
	}
	return ok
}

// IsThrottled 判断是否为限流错误
func IsThrottled(err error) bool { return errors.Is(err, ErrThrottled) }
