package api

import (
	"context"
	"net/http"
	"time"

	"github.com/betbot/botdash/internal/settings"
	sdkhttp "github.com/betbot/botdash/pkg/sdk/http"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var log = logrus.WithField("module", "api")

// Backend 一个后端实例：HTTP 传输 + 端点 profile
type Backend struct {
	http    *sdkhttp.Client
	profile Profile
	now     func() time.Time
}

// NewBackend 创建后端客户端
func NewBackend(client *sdkhttp.Client, profile Profile) *Backend {
	return &Backend{http: client, profile: profile, now: time.Now}
}

// SetClock 替换"今天"的判定时钟（测试用）
func (b *Backend) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	b.now = now
}

// Profile 后端 profile
func (b *Backend) Profile() Profile { return b.profile }

// BaseURL 后端地址
func (b *Backend) BaseURL() string { return b.http.BaseURL() }

// FetchView 拉取一个视图的完整快照。多个端点的视图并发拉取，任一失败则整体失败。
func (b *Backend) FetchView(ctx context.Context, v View) (ViewData, error) {
	if !b.profile.Supports(v) {
		return nil, errors.Wrapf(ErrUnsupported, "view %s on %s", v, b.profile)
	}
	start := time.Now()
	data, err := b.fetch(ctx, v)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", v)
	}
	log.Debugf("加载视图 %s 完成，耗时 %v", v, time.Since(start))
	return data, nil
}

func (b *Backend) fetch(ctx context.Context, v View) (ViewData, error) {
	if b.profile == ProfileMonitor {
		return b.fetchMonitor(ctx, v)
	}
	switch v {
	case ViewOverview:
		var w stdDashboard
		if err := b.http.GetJSON(ctx, "/api/dashboard", &w); err != nil {
			return nil, err
		}
		return w.normalize(b.now()), nil
	case ViewStrategies:
		var w stdStrategies
		if err := b.http.GetJSON(ctx, "/api/strategies", &w); err != nil {
			return nil, err
		}
		return w.normalize(), nil
	case ViewPositions:
		var w stdPositions
		if err := b.http.GetJSON(ctx, "/api/positions", &w); err != nil {
			return nil, err
		}
		return w.normalize(), nil
	case ViewRisk:
		var w stdRisk
		if err := b.http.GetJSON(ctx, "/api/risk/metrics", &w); err != nil {
			return nil, err
		}
		return w.normalize(), nil
	case ViewSettings:
		values := map[string]any{}
		if err := b.http.GetJSON(ctx, "/api/settings", &values); err != nil {
			return nil, err
		}
		return &SettingsBundle{Values: values}, nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "view %s", v)
}

func (b *Backend) fetchMonitor(ctx context.Context, v View) (ViewData, error) {
	switch v {
	case ViewOverview:
		var (
			overview monOverview
			perf     monPerformance
			trades   []monTrade
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return b.http.GetJSON(gctx, "/api/monitor/overview", &overview) })
		g.Go(func() error { return b.http.GetJSON(gctx, "/api/monitor/performance", &perf) })
		g.Go(func() error { return b.http.GetJSON(gctx, "/api/monitor/trades", &trades) })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return normalizeMonitorOverview(&overview, &perf, trades), nil
	case ViewStrategies:
		var list []monStrategy
		if err := b.http.GetJSON(ctx, "/api/strategy/list", &list); err != nil {
			return nil, err
		}
		return normalizeMonitorStrategies(list), nil
	case ViewPositions:
		var list []monPosition
		if err := b.http.GetJSON(ctx, "/api/monitor/positions", &list); err != nil {
			return nil, err
		}
		return normalizeMonitorPositions(list), nil
	case ViewSettings:
		values := map[string]any{}
		if err := b.http.GetJSON(ctx, "/api/config", &values); err != nil {
			return nil, err
		}
		bot, err := settings.DecodeBotConfig(values)
		if err != nil {
			// 原始值仍可编辑，只是没有类型化视图
			log.Warnf("解析 bot 配置失败: %v", err)
		}
		return &SettingsBundle{Values: values, Bot: bot}, nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "view %s", v)
}

// Submit 提交写操作并解析回应
func (b *Backend) Submit(ctx context.Context, a Action) (*ActionResult, error) {
	method := a.Method
	if method == "" {
		method = http.MethodPost
	}
	resp, err := b.http.DoRequest(ctx, method, a.Endpoint, &sdkhttp.RequestOptions{Data: a.Payload})
	if err != nil {
		return nil, errors.Wrapf(err, "%s", a.Kind)
	}
	res, err := ParseActionResult(method, a.Endpoint, resp)
	if err != nil {
		return res, errors.Wrapf(err, "%s", a.Kind)
	}
	return res, nil
}

// Health 探测 /health，非 2xx 视为不健康
func (b *Backend) Health(ctx context.Context) error {
	resp, err := b.http.DoRequest(ctx, http.MethodGet, HealthEndpoint, nil)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return sdkhttp.ParseHTTPError(http.MethodGet, HealthEndpoint, resp)
	}
	return nil
}
