package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betbot/botdash/internal/stub"
	"github.com/betbot/botdash/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		listenAddr = flag.String("listen", getenv("BOTDASH_STUB_LISTEN", "127.0.0.1:8000"), "HTTP 监听地址")
		profile    = flag.String("profile", getenv("BOTDASH_PROFILE", stub.ProfileStandard), "接口族: standard | monitor")
		level      = flag.String("log-level", getenv("LOG_LEVEL", "info"), "日志级别")
	)
	flag.Parse()

	if err := logger.Init(logger.Config{Level: *level}); err != nil {
		logrus.Fatalf("初始化日志失败: %v", err)
	}

	s := stub.New(*profile)
	httpSrv := &http.Server{
		Addr:              *listenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logrus.Infof("stub 后端 (%s) 监听 %s", s.Profile(), *listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("http 服务异常: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	logrus.Info("stub 后端已停止")
}
