package dashboard

import (
	"context"
	"time"

	"github.com/betbot/botdash/internal/api"
	"github.com/pkg/errors"
)

// StartPolling 按固定间隔加载当前视图，直到 ctx 结束、StopPolling 或 Close。
// interval <= 0 时使用选项里的间隔。上一轮加载未结束时该轮跳过。
func (c *Client) StartPolling(ctx context.Context, interval time.Duration) error {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	if c.pollCancel != nil {
		return ErrPolling
	}
	if interval > 0 {
		c.interval = interval
	}
	// 丢掉启动前积压的间隔调整
	select {
	case <-c.intervalCh:
	default:
	}

	pctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.pollCancel = cancel
	c.pollDone = done
	go c.pollLoop(pctx, c.interval, done)

	log.Infof("开始轮询，间隔 %v", c.interval)
	return nil
}

// StopPolling 停止轮询并等待轮询循环退出
func (c *Client) StopPolling() {
	c.pollMu.Lock()
	cancel, done := c.pollCancel, c.pollDone
	c.pollCancel, c.pollDone = nil, nil
	c.pollMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetPollInterval 运行时调整轮询间隔，下一次 tick 起生效
func (c *Client) SetPollInterval(d time.Duration) error {
	if d <= 0 {
		return errors.Errorf("invalid poll interval %v", d)
	}
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	if c.interval == d {
		return nil
	}
	c.interval = d
	if c.pollCancel == nil {
		return nil
	}
	select {
	case <-c.intervalCh:
	default:
	}
	c.intervalCh <- d
	return nil
}

// PollInterval 当前轮询间隔
func (c *Client) PollInterval() time.Duration {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	return c.interval
}

func (c *Client) pollLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := c.opts.NewTicker(interval)
	defer func() { ticker.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-c.intervalCh:
			if d == interval {
				continue
			}
			ticker.Stop()
			ticker = c.opts.NewTicker(d)
			log.Infof("轮询间隔调整: %v -> %v", interval, d)
			interval = d
		case <-ticker.C():
			c.tick(ctx)
		}
	}
}

func (c *Client) tick(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	v := c.active
	slot := c.views[v]
	if slot.polling || slot.inflight > 0 {
		c.mu.Unlock()
		c.metrics.skippedTicks.WithLabelValues(string(v)).Inc()
		log.Debugf("视图 %s 仍在加载，跳过本轮轮询", v)
		return
	}
	slot.polling = true
	c.loads.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.loads.Done()
		defer c.endPoll(v)
		_ = c.LoadView(ctx, v)
	}()
}

func (c *Client) endPoll(v api.View) {
	c.mu.Lock()
	c.views[v].polling = false
	c.mu.Unlock()
}
