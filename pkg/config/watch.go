package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

var watchLog = logrus.WithField("module", "config.watch")

// Watch 监听配置文件变化，每次成功重新加载后调用 onChange。
// 监听的是所在目录：编辑器通常以 rename 方式保存文件。
// 解析失败时保留旧配置，只记日志。ctx 取消后返回。
func Watch(ctx context.Context, filePath string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(filePath)
	if err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadFromFile(abs)
				if err != nil {
					watchLog.Warnf("配置重新加载失败，保留旧配置: %v", err)
					continue
				}
				watchLog.Infof("配置已重新加载: %s", abs)
				onChange(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				watchLog.Warnf("配置监听错误: %v", err)
			}
		}
	}()
	return nil
}
