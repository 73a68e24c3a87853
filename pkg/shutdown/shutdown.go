package shutdown

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "shutdown")

// Handler 关闭处理函数；应在 ctx 到期前返回
type Handler func(ctx context.Context)

type namedHandler struct {
	name    string
	handler Handler
}

// Manager 优雅关闭管理器
type Manager struct {
	callbacks []namedHandler
	mu        sync.Mutex
	once      sync.Once
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, namedHandler{name: name, handler: handler})
}

// Shutdown 并发执行所有关闭回调（阻塞调用，只执行一次）
// ctx 应该是一个带超时的 context，避免无限等待
func (m *Manager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.mu.Lock()
		callbacks := append([]namedHandler(nil), m.callbacks...)
		m.mu.Unlock()

		if len(callbacks) == 0 {
			log.Info("没有注册的关闭回调")
			return
		}

		log.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

		var wg sync.WaitGroup
		wg.Add(len(callbacks))
		for _, cb := range callbacks {
			go func(cb namedHandler) {
				defer wg.Done()
				cb.handler(ctx)
				log.Debugf("关闭回调完成: %s", cb.name)
			}(cb)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Info("所有关闭回调已完成")
		case <-ctx.Done():
			log.Warnf("关闭超时: %v", ctx.Err())
		}
	})
}
