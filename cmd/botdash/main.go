package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/betbot/botdash/internal/api"
	"github.com/betbot/botdash/internal/dashboard"
	"github.com/betbot/botdash/pkg/config"
	"github.com/betbot/botdash/pkg/logger"
	"github.com/betbot/botdash/pkg/ratelimit"
	sdkhttp "github.com/betbot/botdash/pkg/sdk/http"
	"github.com/betbot/botdash/pkg/shutdown"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

const (
	modeTUI      = "tui"
	modeHeadless = "headless"
	modeSnapshot = "snapshot"
	modeExport   = "export"

	gracefulShutdownPeriod = 5 * time.Second
	healthTimeout          = 3 * time.Second
)

func main() {
	// .env 可选，缺失时使用真实环境变量
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	mode := flag.String("mode", modeTUI, "运行模式: tui | headless | snapshot | export")
	viewName := flag.String("view", "", "snapshot 模式输出的视图，默认使用 ui.initial_view")
	out := flag.String("out", "", "export 模式输出的 .xlsx 路径")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	*mode = strings.ToLower(strings.TrimSpace(*mode))
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		// 界面和表格输出占用 stdout
		Quiet: *mode != modeHeadless,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	a, err := newApp(cfg)
	if err != nil {
		logrus.Errorf("初始化失败: %v", err)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logrus.Info("收到停止信号，正在关闭...")
			rootCancel()
		case <-rootCtx.Done():
		}
	}()

	switch *mode {
	case modeTUI:
		err = a.runTUI(rootCtx, *configPath)
	case modeHeadless:
		err = a.runHeadless(rootCtx, *configPath)
	case modeSnapshot:
		err = a.runSnapshot(rootCtx, *viewName)
	case modeExport:
		err = a.runExport(rootCtx, *out)
	default:
		err = fmt.Errorf("未知运行模式: %s", *mode)
	}

	rootCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
	defer shutdownCancel()
	a.shutdown.Shutdown(shutdownCtx)

	if err != nil {
		logrus.Errorf("退出: %v", err)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	backend  *api.Backend
	client   *dashboard.Client
	limiter  *ratelimit.TokenBucket
	registry *prometheus.Registry
	shutdown *shutdown.Manager
}

func newApp(cfg *config.Config) (*app, error) {
	profile, err := api.ParseProfile(cfg.API.Profile)
	if err != nil {
		return nil, err
	}
	initial, err := api.ParseView(cfg.UI.InitialView)
	if err != nil {
		return nil, err
	}

	hc := sdkhttp.NewClient(cfg.API.BaseURL, sdkhttp.Options{
		Timeout: cfg.API.Timeout,
		Headers: cfg.API.Headers,
	})
	backend := api.NewBackend(hc, profile)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	limiter := ratelimit.NewTokenBucket(cfg.Actions.RatePerSec, cfg.Actions.Burst)
	client, err := dashboard.New(backend, dashboard.Options{
		PollInterval:      cfg.Poll.Interval,
		StaleAfter:        cfg.Poll.StaleAfter,
		InitialView:       initial,
		NotificationLimit: cfg.UI.NotificationLimit,
		ActionLimiter:     limiter,
		Registerer:        reg,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		backend:  backend,
		client:   client,
		limiter:  limiter,
		registry: reg,
		shutdown: shutdown.NewManager(),
	}
	a.shutdown.OnShutdown("dashboard", func(ctx context.Context) {
		if err := client.Close(); err != nil {
			logrus.Warnf("关闭看板失败: %v", err)
		}
	})
	logrus.Infof("后端: %s (%s)", backend.BaseURL(), profile)
	return a, nil
}

// checkHealth 启动时探测一次后端，失败作为第一条通知
func (a *app) checkHealth(ctx context.Context) {
	hctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := a.backend.Health(hctx); err != nil {
		logrus.Warnf("后端健康检查失败: %v", err)
		a.client.Notify(dashboard.LevelError, "后端不可用: "+sdkhttp.MessageOf(err))
		return
	}
	logrus.Info("后端健康检查通过")
}

// watchConfig 配置文件变化时更新轮询间隔和操作限流
func (a *app) watchConfig(ctx context.Context, path string) {
	if path == "" {
		return
	}
	err := config.Watch(ctx, path, func(cfg *config.Config) {
		if err := a.client.SetPollInterval(cfg.Poll.Interval); err != nil {
			logrus.Warnf("更新轮询间隔失败: %v", err)
		}
		a.limiter.SetRate(cfg.Actions.RatePerSec)
	})
	if err != nil {
		logrus.Warnf("无法监听配置文件 %s: %v", path, err)
	}
}

// startPolling 轮询随 Close 一起停止
func (a *app) startPolling(ctx context.Context) error {
	return a.client.StartPolling(ctx, a.cfg.Poll.Interval)
}
