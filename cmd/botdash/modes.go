package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/betbot/botdash/internal/api"
	"github.com/betbot/botdash/internal/dashboard"
	"github.com/betbot/botdash/internal/metrics"
	"github.com/betbot/botdash/internal/report"
	"github.com/betbot/botdash/internal/tui"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func (a *app) runTUI(ctx context.Context, configPath string) error {
	a.checkHealth(ctx)
	if err := a.startPolling(ctx); err != nil {
		return err
	}
	a.watchConfig(ctx, configPath)

	err := tui.Run(ctx, a.client, tui.Options{
		Title:          fmt.Sprintf("botdash · %s", a.client.Profile()),
		ConfirmActions: a.cfg.UI.ConfirmActions,
	})
	if errors.Is(err, tui.ErrNotTerminal) {
		return errors.New("stdout 不是终端，请使用 -mode headless 或 -mode snapshot")
	}
	return err
}

// runHeadless 只轮询，不渲染；通知写入日志，指标通过 /metrics 暴露
func (a *app) runHeadless(ctx context.Context, configPath string) error {
	if a.cfg.Metrics.Listen != "" {
		if _, err := metrics.StartAsync(ctx, a.cfg.Metrics.Listen, a.registry); err != nil {
			return errors.Wrap(err, "start metrics server")
		}
	}
	a.checkHealth(ctx)
	if err := a.startPolling(ctx); err != nil {
		return err
	}
	a.watchConfig(ctx, configPath)

	logrus.Infof("headless 模式已启动，轮询间隔 %s，按 Ctrl+C 停止", a.client.PollInterval())
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.client.Changed():
			for _, n := range a.client.Notifications() {
				if seen[n.ID] {
					continue
				}
				seen[n.ID] = true
				logNotification(n)
			}
			if len(seen) > 4*a.cfg.UI.NotificationLimit {
				seen = make(map[string]bool)
				for _, n := range a.client.Notifications() {
					seen[n.ID] = true
				}
			}
		}
	}
}

func logNotification(n dashboard.Notification) {
	entry := logrus.WithField("view", string(n.View))
	switch n.Level {
	case dashboard.LevelError:
		entry.Warnf("通知: %s", n.Message)
	default:
		entry.Infof("通知: %s", n.Message)
	}
}

// runSnapshot 加载一个视图并以表格打印到 stdout
func (a *app) runSnapshot(ctx context.Context, viewName string) error {
	v := a.client.ActiveView()
	if viewName != "" {
		parsed, err := api.ParseView(viewName)
		if err != nil {
			return err
		}
		v = parsed
	}
	if err := a.client.LoadView(ctx, v); err != nil {
		return errors.Wrapf(err, "load %s", v)
	}
	st, _ := a.client.ViewState(v)
	return report.WriteView(os.Stdout, st.Data, a.client.Schema())
}

// runExport 并发加载除设置外的所有视图，写成一个工作簿
func (a *app) runExport(ctx context.Context, out string) error {
	if out == "" {
		out = filepath.Join("reports", fmt.Sprintf("botdash_%s.xlsx", time.Now().Format("20060102_150405")))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, v := range a.client.Profile().Views() {
		if v == api.ViewSettings {
			continue
		}
		g.Go(func() error {
			if err := a.client.LoadView(gctx, v); err != nil {
				return errors.Wrapf(err, "load %s", v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := report.WriteXLSX(report.WorkbookFromSnapshot(a.client.Snapshot()), out); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
