package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/betbot/botdash/internal/api"
	"github.com/betbot/botdash/internal/settings"
	"github.com/betbot/botdash/pkg/cache"
	"github.com/betbot/botdash/pkg/ratelimit"
	sdkhttp "github.com/betbot/botdash/pkg/sdk/http"
	"github.com/betbot/botdash/pkg/sigchan"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var log = logrus.WithField("module", "dashboard")

var (
	// ErrClosed Close 之后的所有调用
	ErrClosed = errors.New("dashboard closed")
	// ErrThrottled 写操作被限流
	ErrThrottled = errors.New("action throttled")
	// ErrNoPending 没有等待确认的操作
	ErrNoPending = errors.New("no pending action")
	// ErrPolling 轮询已在运行
	ErrPolling = errors.New("polling already started")
)

const (
	DefaultPollInterval      = 5 * time.Second
	DefaultNotificationLimit = 50
)

// Backend 看板依赖的后端能力，*api.Backend 实现了它
type Backend interface {
	Profile() api.Profile
	FetchView(ctx context.Context, v api.View) (api.ViewData, error)
	Submit(ctx context.Context, a api.Action) (*api.ActionResult, error)
}

// Ticker 可替换的定时器（测试注入）
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

// Options 看板选项，零值字段使用默认值
type Options struct {
	PollInterval      time.Duration
	StaleAfter        time.Duration // 默认 2 倍轮询间隔
	InitialView       api.View
	NotificationLimit int
	ActionLimiter     ratelimit.RateLimiter
	Registerer        prometheus.Registerer
	NewTicker         func(time.Duration) Ticker
	Now               func() time.Time
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 2 * o.PollInterval
	}
	if o.InitialView == "" {
		o.InitialView = api.ViewOverview
	}
	if o.NotificationLimit <= 0 {
		o.NotificationLimit = DefaultNotificationLimit
	}
	if o.ActionLimiter == nil {
		o.ActionLimiter = ratelimit.Unlimited{}
	}
	if o.NewTicker == nil {
		o.NewTicker = newRealTicker
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Client 看板状态容器：视图生命周期、轮询、写操作、通知和待确认操作都在这里
type Client struct {
	backend Backend
	profile api.Profile
	schema  *settings.Schema
	opts    Options
	metrics *clientMetrics
	changed *sigchan.Chan
	group   singleflight.Group
	fresh   *cache.InMemoryCache[api.View, time.Time]

	mu      sync.Mutex
	views   map[api.View]*viewSlot
	active  api.View
	notes   []Notification
	pending PendingAction
	closed  bool

	pollMu     sync.Mutex
	interval   time.Duration
	intervalCh chan time.Duration
	pollCancel context.CancelFunc
	pollDone   chan struct{}
	loads      sync.WaitGroup
}

// New 创建看板
func New(backend Backend, opts Options) (*Client, error) {
	if backend == nil {
		return nil, errors.New("dashboard: nil backend")
	}
	opts.applyDefaults()
	profile := backend.Profile()
	if !profile.Supports(opts.InitialView) {
		return nil, errors.Wrapf(api.ErrUnsupported, "initial view %s on %s", opts.InitialView, profile)
	}
	schema, err := settings.SchemaFor(string(profile))
	if err != nil {
		return nil, err
	}

	fresh := cache.NewInMemoryCache[api.View, time.Time](opts.StaleAfter, 0)
	fresh.SetClock(opts.Now)

	c := &Client{
		backend:    backend,
		profile:    profile,
		schema:     schema,
		opts:       opts,
		metrics:    newClientMetrics(opts.Registerer),
		changed:    sigchan.New(1),
		fresh:      fresh,
		views:      make(map[api.View]*viewSlot),
		active:     opts.InitialView,
		pending:    NoPending{},
		interval:   opts.PollInterval,
		intervalCh: make(chan time.Duration, 1),
	}
	for _, v := range profile.Views() {
		c.views[v] = &viewSlot{phase: PhaseIdle}
	}
	return c, nil
}

// Profile 后端 profile
func (c *Client) Profile() api.Profile { return c.profile }

// Schema 设置表单的 schema
func (c *Client) Schema() *settings.Schema { return c.schema }

// Changed 状态变化信号，多次变化在消费前合并
func (c *Client) Changed() <-chan struct{} { return c.changed.C() }

// LoadView 加载一个视图。同一视图的并发加载合并为一次请求。
// 失败时保留上一次的快照，记录日志并发出一条错误通知。
func (c *Client) LoadView(ctx context.Context, v api.View) error {
	if !c.profile.Supports(v) {
		return errors.Wrapf(api.ErrUnsupported, "view %s on %s", v, c.profile)
	}
	if c.isClosed() {
		return ErrClosed
	}
	_, err, _ := c.group.Do(string(v), func() (any, error) {
		return nil, c.load(ctx, v)
	})
	return err
}

// Refresh 重新加载当前视图
func (c *Client) Refresh(ctx context.Context) error {
	return c.LoadView(ctx, c.ActiveView())
}

func (c *Client) load(ctx context.Context, v api.View) error {
	seq, ok := c.begin(v)
	if !ok {
		return ErrClosed
	}
	defer c.loads.Done()
	start := time.Now()
	data, err := c.backend.FetchView(ctx, v)
	c.metrics.fetchLatency.WithLabelValues(string(v)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.fail(ctx, v, seq, err)
		return err
	}
	c.apply(v, seq, data)
	return nil
}

func (c *Client) begin(v api.View) (uint64, bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, false
	}
	slot := c.views[v]
	slot.issued++
	slot.inflight++
	// 与 Close 在同一把锁下判断 closed，Close 的 Wait 一定能看到这次 Add
	c.loads.Add(1)
	slot.phase = PhaseLoading
	seq := slot.issued
	c.mu.Unlock()

	c.changed.Emit()
	return seq, true
}

func (c *Client) apply(v api.View, seq uint64, data api.ViewData) {
	now := c.opts.Now()

	c.mu.Lock()
	slot := c.views[v]
	slot.inflight--
	if c.closed {
		c.mu.Unlock()
		return
	}
	if seq <= slot.applied {
		slot.phase = slot.settledPhase()
		c.mu.Unlock()
		c.metrics.fetches.WithLabelValues(string(v), "stale").Inc()
		log.Debugf("丢弃过期的 %s 响应 seq=%d applied=%d", v, seq, slot.applied)
		return
	}
	slot.data = data
	slot.err = nil
	slot.applied = seq
	slot.updatedAt = now
	slot.phase = slot.settledPhase()
	c.mu.Unlock()

	c.fresh.Set(v, now, 0)
	c.metrics.fetches.WithLabelValues(string(v), "ok").Inc()
	c.changed.Emit()
}

func (c *Client) fail(ctx context.Context, v api.View, seq uint64, err error) {
	c.mu.Lock()
	slot := c.views[v]
	slot.inflight--
	if c.closed {
		c.mu.Unlock()
		return
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		slot.phase = slot.settledPhase()
		c.mu.Unlock()
		c.metrics.fetches.WithLabelValues(string(v), "canceled").Inc()
		c.changed.Emit()
		return
	}
	if seq <= slot.applied {
		// 更新的快照已经生效，这次失败不再影响界面
		slot.phase = slot.settledPhase()
		c.mu.Unlock()
		c.metrics.fetches.WithLabelValues(string(v), "stale").Inc()
		log.Debugf("忽略过期加载的失败 %s seq=%d applied=%d: %v", v, seq, slot.applied, err)
		c.changed.Emit()
		return
	}
	slot.err = err
	slot.phase = slot.settledPhase()
	c.pushLocked(LevelError, v, fmt.Sprintf("加载%s失败: %s", v.Title(), sdkhttp.MessageOf(err)))
	c.mu.Unlock()

	log.Errorf("加载视图 %s 失败 (seq=%d): %v", v, seq, err)
	c.metrics.fetches.WithLabelValues(string(v), "error").Inc()
	c.changed.Emit()
}

// SwitchView 切换当前视图。从未加载、上次出错或快照已过期时重新加载。
func (c *Client) SwitchView(ctx context.Context, v api.View) error {
	if !c.profile.Supports(v) {
		return errors.Wrapf(api.ErrUnsupported, "view %s on %s", v, c.profile)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.active = v
	slot := c.views[v]
	needLoad := slot.data == nil || slot.err != nil
	c.mu.Unlock()
	c.changed.Emit()

	if _, fresh := c.fresh.Get(v); !fresh {
		needLoad = true
	}
	if !needLoad {
		return nil
	}
	return c.LoadView(ctx, v)
}

// ActiveView 当前视图
func (c *Client) ActiveView() api.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ViewState 一个视图的状态副本
func (c *Client) ViewState(v api.View) (ViewState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.views[v]
	if !ok {
		return ViewState{View: v}, false
	}
	return c.stateLocked(v, slot), true
}

func (c *Client) stateLocked(v api.View, slot *viewSlot) ViewState {
	return ViewState{
		View:      v,
		Phase:     slot.phase,
		Active:    v == c.active,
		Data:      slot.data,
		Err:       slot.err,
		UpdatedAt: slot.updatedAt,
		Seq:       slot.applied,
	}
}

// Snapshot 整体状态副本
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Profile:       c.profile,
		Active:        c.active,
		Views:         make(map[api.View]ViewState, len(c.views)),
		Notifications: append([]Notification(nil), c.notes...),
		Pending:       c.pending,
		Closed:        c.closed,
	}
	for v, slot := range c.views {
		s.Views[v] = c.stateLocked(v, slot)
	}
	return s
}

// Notify 追加一条通知
func (c *Client) Notify(level Level, message string) {
	c.mu.Lock()
	c.pushLocked(level, c.active, message)
	c.mu.Unlock()
	c.changed.Emit()
}

func (c *Client) notify(level Level, v api.View, message string) {
	c.mu.Lock()
	c.pushLocked(level, v, message)
	c.mu.Unlock()
	c.changed.Emit()
}

func (c *Client) pushLocked(level Level, v api.View, message string) {
	c.notes = append(c.notes, Notification{
		ID:      uuid.NewString(),
		Level:   level,
		View:    v,
		Message: message,
		Time:    c.opts.Now(),
	})
	if over := len(c.notes) - c.opts.NotificationLimit; over > 0 {
		c.notes = append([]Notification(nil), c.notes[over:]...)
	}
	c.metrics.notifications.WithLabelValues(string(level)).Inc()
}

// Notifications 通知列表，旧的在前
func (c *Client) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.notes...)
}

// Dismiss 移除一条通知
func (c *Client) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notes {
		if n.ID == id {
			c.notes = append(c.notes[:i:i], c.notes[i+1:]...)
			c.changed.Emit()
			return true
		}
	}
	return false
}

// ClearNotifications 清空通知
func (c *Client) ClearNotifications() {
	c.mu.Lock()
	c.notes = nil
	c.mu.Unlock()
	c.changed.Emit()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close 停止轮询、等待进行中的加载结束，并把所有视图置为 Closed。可重复调用。
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for _, slot := range c.views {
		slot.phase = PhaseClosed
	}
	c.pending = NoPending{}
	c.mu.Unlock()

	c.StopPolling()
	c.loads.Wait()
	c.fresh.Close()
	c.changed.Emit()
	log.Infof("看板已关闭")
	return nil
}
