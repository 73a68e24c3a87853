package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/betbot/botdash/internal/api"
	"github.com/betbot/botdash/internal/settings"
	"github.com/betbot/botdash/internal/stub"
	"github.com/betbot/botdash/pkg/ratelimit"
	sdkhttp "github.com/betbot/botdash/pkg/sdk/http"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// fakeBackend 可控的后端：fetch/submit 由测试指定
type fakeBackend struct {
	profile api.Profile
	fetch   func(ctx context.Context, v api.View, n int) (api.ViewData, error)
	submit  func(ctx context.Context, a api.Action) (*api.ActionResult, error)

	mu        sync.Mutex
	calls     map[api.View]int
	submitted []api.Action
}

func newFake(profile api.Profile) *fakeBackend {
	return &fakeBackend{profile: profile, calls: make(map[api.View]int)}
}

func (f *fakeBackend) Profile() api.Profile { return f.profile }

func (f *fakeBackend) FetchView(ctx context.Context, v api.View) (api.ViewData, error) {
	f.mu.Lock()
	f.calls[v]++
	n := f.calls[v]
	f.mu.Unlock()
	if f.fetch != nil {
		return f.fetch(ctx, v, n)
	}
	return emptyData(v), nil
}

func (f *fakeBackend) Submit(ctx context.Context, a api.Action) (*api.ActionResult, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, a)
	f.mu.Unlock()
	if f.submit != nil {
		return f.submit(ctx, a)
	}
	return &api.ActionResult{StatusCode: http.StatusOK, Status: "success", Message: "ok"}, nil
}

func (f *fakeBackend) Calls(v api.View) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[v]
}

func (f *fakeBackend) Submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func emptyData(v api.View) api.ViewData {
	switch v {
	case api.ViewStrategies:
		return &api.StrategyList{}
	case api.ViewPositions:
		return &api.PositionList{}
	case api.ViewRisk:
		return &api.RiskReport{}
	case api.ViewSettings:
		return &api.SettingsBundle{Values: map[string]any{}}
	default:
		return &api.Overview{}
	}
}

type fakeTicker struct {
	interval time.Duration
	ch       chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func tickerFactory() (func(time.Duration) Ticker, chan *fakeTicker) {
	created := make(chan *fakeTicker, 8)
	return func(d time.Duration) Ticker {
		t := &fakeTicker{interval: d, ch: make(chan time.Time)}
		created <- t
		return t
	}, created
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// busy 视图是否有加载或轮询在进行
func (c *Client) busy(v api.View) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.views[v]
	return s.polling || s.inflight > 0
}

func newClient(t *testing.T, b Backend, opts Options) *Client {
	t.Helper()
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	c, err := New(b, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newStubClient(t *testing.T, profile api.Profile, opts Options) (*Client, *stub.Server) {
	t.Helper()
	s := stub.New(string(profile))
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	hc := sdkhttp.NewClient(srv.URL, sdkhttp.Options{Timeout: 2 * time.Second})
	return newClient(t, api.NewBackend(hc, profile), opts), s
}

func TestNew_Defaults(t *testing.T) {
	c := newClient(t, newFake(api.ProfileMonitor), Options{})
	assert.Equal(t, api.ViewOverview, c.ActiveView())
	assert.Equal(t, DefaultPollInterval, c.PollInterval())
	assert.Equal(t, "monitor", c.Schema().Name())
	assert.IsType(t, NoPending{}, c.Pending())

	snap := c.Snapshot()
	assert.Len(t, snap.Views, 4, "monitor backend has no risk view")
	for v, st := range snap.Views {
		assert.Equal(t, PhaseIdle, st.Phase, v)
	}

	_, err := New(newFake(api.ProfileMonitor), Options{InitialView: api.ViewRisk})
	assert.ErrorIs(t, err, api.ErrUnsupported)
}

func TestLoadView_FailureKeepsSnapshot(t *testing.T) {
	c, s := newStubClient(t, api.ProfileStandard, Options{})
	ctx := context.Background()

	require.NoError(t, c.LoadView(ctx, api.ViewStrategies))
	before, _ := c.ViewState(api.ViewStrategies)
	require.Equal(t, PhaseLoaded, before.Phase)
	require.Len(t, before.Data.(*api.StrategyList).Strategies, 2)

	s.FailNext(http.MethodGet, "/api/strategies", http.StatusInternalServerError, gin.H{"detail": "数据库不可用"})
	err := c.LoadView(ctx, api.ViewStrategies)
	require.Error(t, err)
	assert.Equal(t, sdkhttp.KindServer, sdkhttp.KindOf(err))

	after, _ := c.ViewState(api.ViewStrategies)
	assert.Equal(t, PhaseError, after.Phase)
	assert.Same(t, before.Data, after.Data, "previous snapshot stays displayed")
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	notes := c.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelError, notes[0].Level)
	assert.Equal(t, api.ViewStrategies, notes[0].View)
	assert.Contains(t, notes[0].Message, "数据库不可用")

	// 下一次成功加载清除错误
	require.NoError(t, c.LoadView(ctx, api.ViewStrategies))
	recovered, _ := c.ViewState(api.ViewStrategies)
	assert.Equal(t, PhaseLoaded, recovered.Phase)
	assert.NoError(t, recovered.Err)
	assert.Len(t, c.Notifications(), 1)
}

func TestLoadView_MalformedBody(t *testing.T) {
	c, s := newStubClient(t, api.ProfileStandard, Options{})
	s.FailNext(http.MethodGet, "/api/positions", http.StatusOK, "<html>oops</html>")

	err := c.LoadView(context.Background(), api.ViewPositions)
	require.Error(t, err)
	st, _ := c.ViewState(api.ViewPositions)
	assert.Equal(t, PhaseError, st.Phase)
	assert.False(t, st.Loaded())
	assert.Len(t, c.Notifications(), 1)
}

func TestLoadView_CanceledIsSilent(t *testing.T) {
	f := newFake(api.ProfileStandard)
	f.fetch = func(ctx context.Context, _ api.View, _ int) (api.ViewData, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c := newClient(t, f, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.LoadView(ctx, api.ViewOverview)
	assert.ErrorIs(t, err, context.Canceled)

	st, _ := c.ViewState(api.ViewOverview)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Empty(t, c.Notifications())
}

func TestLoadView_StaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	older, newer := &api.StrategyList{}, &api.StrategyList{}
	f := newFake(api.ProfileStandard)
	f.fetch = func(_ context.Context, _ api.View, n int) (api.ViewData, error) {
		if n == 1 {
			<-release
			return older, nil
		}
		return newer, nil
	}
	c := newClient(t, f, Options{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.LoadView(ctx, api.ViewStrategies) }()
	require.Eventually(t, func() bool { return f.Calls(api.ViewStrategies) == 1 }, waitFor, time.Millisecond)

	// 操作后的刷新不并入旧的加载
	a := api.Action{Kind: api.ActionToggleStrategy, Refetch: api.ViewStrategies, Description: "切换策略"}
	_, err := c.SubmitAction(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Calls(api.ViewStrategies))

	st, _ := c.ViewState(api.ViewStrategies)
	assert.Same(t, newer, st.Data)
	assert.Equal(t, PhaseLoading, st.Phase, "older load still in flight")

	close(release)
	require.NoError(t, <-done)

	st, _ = c.ViewState(api.ViewStrategies)
	assert.Same(t, newer, st.Data, "older response must not overwrite a newer snapshot")
	assert.Equal(t, PhaseLoaded, st.Phase)
	assert.Equal(t, uint64(2), st.Seq)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.fetches.WithLabelValues("strategies", "stale")))
}

func TestLoadView_SupersededFailureIsQuiet(t *testing.T) {
	release := make(chan struct{})
	newer := &api.StrategyList{}
	f := newFake(api.ProfileStandard)
	f.fetch = func(_ context.Context, _ api.View, n int) (api.ViewData, error) {
		if n == 1 {
			<-release
			return nil, errors.New("old poll failed")
		}
		return newer, nil
	}
	c := newClient(t, f, Options{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.LoadView(ctx, api.ViewStrategies) }()
	require.Eventually(t, func() bool { return f.Calls(api.ViewStrategies) == 1 }, waitFor, time.Millisecond)

	a := api.Action{Kind: api.ActionToggleStrategy, Refetch: api.ViewStrategies, Description: "切换策略"}
	_, err := c.SubmitAction(ctx, a)
	require.NoError(t, err)

	close(release)
	require.Error(t, <-done)

	st, _ := c.ViewState(api.ViewStrategies)
	assert.Same(t, newer, st.Data)
	assert.Equal(t, PhaseLoaded, st.Phase)
	assert.NoError(t, st.Err)
	for _, n := range c.Notifications() {
		assert.NotEqual(t, LevelError, n.Level, n.Message)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.fetches.WithLabelValues("strategies", "stale")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.metrics.fetches.WithLabelValues("strategies", "error")))
}

func TestLoadView_ConcurrentCallsShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	f := newFake(api.ProfileStandard)
	f.fetch = func(_ context.Context, v api.View, _ int) (api.ViewData, error) {
		<-release
		return emptyData(v), nil
	}
	c := newClient(t, f, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.LoadView(context.Background(), api.ViewRisk))
		}()
	}
	require.Eventually(t, func() bool { return f.Calls(api.ViewRisk) == 1 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, 1, f.Calls(api.ViewRisk))
}

func TestPolling_FixedIntervalFetchCount(t *testing.T) {
	f := newFake(api.ProfileStandard)
	newTicker, created := tickerFactory()
	c := newClient(t, f, Options{NewTicker: newTicker})

	require.NoError(t, c.StartPolling(context.Background(), 5000*time.Millisecond))
	ticker := <-created
	assert.Equal(t, 5*time.Second, ticker.interval)

	// 60 秒 / 5 秒 = 12 次
	for i := 1; i <= int(60*time.Second/ticker.interval); i++ {
		ticker.ch <- time.Now()
		require.Eventually(t, func() bool {
			return f.Calls(api.ViewOverview) == i && !c.busy(api.ViewOverview)
		}, waitFor, time.Millisecond)
	}
	assert.Equal(t, 12, f.Calls(api.ViewOverview))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.metrics.skippedTicks.WithLabelValues("overview")))
	assert.ErrorIs(t, c.StartPolling(context.Background(), time.Second), ErrPolling)

	c.StopPolling()
	assert.True(t, ticker.Stopped())
}

func TestPolling_SkipsOverlappingTick(t *testing.T) {
	release := make(chan struct{})
	f := newFake(api.ProfileStandard)
	f.fetch = func(_ context.Context, v api.View, _ int) (api.ViewData, error) {
		<-release
		return emptyData(v), nil
	}
	newTicker, created := tickerFactory()
	c := newClient(t, f, Options{NewTicker: newTicker})

	require.NoError(t, c.StartPolling(context.Background(), time.Second))
	ticker := <-created

	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return f.Calls(api.ViewOverview) == 1 }, waitFor, time.Millisecond)
	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	skipped := c.metrics.skippedTicks.WithLabelValues("overview")
	require.Eventually(t, func() bool { return testutil.ToFloat64(skipped) == 2 }, waitFor, time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return !c.busy(api.ViewOverview) }, waitFor, time.Millisecond)
	assert.Equal(t, 1, f.Calls(api.ViewOverview))

	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return f.Calls(api.ViewOverview) == 2 }, waitFor, time.Millisecond)
}

func TestPolling_FollowsActiveView(t *testing.T) {
	f := newFake(api.ProfileStandard)
	newTicker, created := tickerFactory()
	c := newClient(t, f, Options{NewTicker: newTicker})
	ctx := context.Background()

	require.NoError(t, c.StartPolling(ctx, time.Second))
	ticker := <-created
	require.NoError(t, c.SwitchView(ctx, api.ViewPositions))
	require.Equal(t, 1, f.Calls(api.ViewPositions))

	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return f.Calls(api.ViewPositions) == 2 }, waitFor, time.Millisecond)
	assert.Equal(t, 0, f.Calls(api.ViewOverview))
}

func TestSetPollInterval(t *testing.T) {
	newTicker, created := tickerFactory()
	c := newClient(t, newFake(api.ProfileStandard), Options{NewTicker: newTicker})

	require.Error(t, c.SetPollInterval(0))
	require.NoError(t, c.StartPolling(context.Background(), 5*time.Second))
	first := <-created

	require.NoError(t, c.SetPollInterval(2*time.Second))
	var second *fakeTicker
	select {
	case second = <-created:
	case <-time.After(waitFor):
		t.Fatal("ticker not recreated")
	}
	assert.Equal(t, 2*time.Second, second.interval)
	assert.True(t, first.Stopped())
	assert.Equal(t, 2*time.Second, c.PollInterval())

	// 相同间隔不重建
	require.NoError(t, c.SetPollInterval(2*time.Second))
	select {
	case <-created:
		t.Fatal("unexpected ticker")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSwitchView_LoadsWhenNeeded(t *testing.T) {
	clk := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	f := newFake(api.ProfileStandard)
	c := newClient(t, f, Options{Now: clk.Now, StaleAfter: 10 * time.Second})
	ctx := context.Background()

	require.NoError(t, c.SwitchView(ctx, api.ViewStrategies))
	assert.Equal(t, 1, f.Calls(api.ViewStrategies))

	snap := c.Snapshot()
	active := 0
	for v, st := range snap.Views {
		if st.Active {
			active++
			assert.Equal(t, api.ViewStrategies, v)
		}
	}
	assert.Equal(t, 1, active)

	require.NoError(t, c.SwitchView(ctx, api.ViewOverview))
	require.NoError(t, c.SwitchView(ctx, api.ViewStrategies))
	assert.Equal(t, 1, f.Calls(api.ViewStrategies), "fresh snapshot is reused")

	clk.Advance(11 * time.Second)
	require.NoError(t, c.SwitchView(ctx, api.ViewStrategies))
	assert.Equal(t, 2, f.Calls(api.ViewStrategies), "stale snapshot is reloaded")

	st, _ := c.ViewState(api.ViewStrategies)
	assert.Equal(t, clk.Now(), st.UpdatedAt)
}

func TestSwitchView_ReloadsAfterError(t *testing.T) {
	f := newFake(api.ProfileStandard)
	f.fetch = func(_ context.Context, v api.View, n int) (api.ViewData, error) {
		if n == 1 {
			return nil, &sdkhttp.RequestError{Kind: sdkhttp.KindNetwork, Message: "connection refused"}
		}
		return emptyData(v), nil
	}
	c := newClient(t, f, Options{StaleAfter: time.Hour})
	ctx := context.Background()

	require.Error(t, c.SwitchView(ctx, api.ViewRisk))
	require.NoError(t, c.SwitchView(ctx, api.ViewOverview))
	require.NoError(t, c.SwitchView(ctx, api.ViewRisk))
	assert.Equal(t, 2, f.Calls(api.ViewRisk))
}

func TestSwitchView_Unsupported(t *testing.T) {
	c := newClient(t, newFake(api.ProfileMonitor), Options{})
	err := c.SwitchView(context.Background(), api.ViewRisk)
	assert.ErrorIs(t, err, api.ErrUnsupported)
	assert.Equal(t, api.ViewOverview, c.ActiveView())
}

func TestToggleStrategy_RefetchesListOnce(t *testing.T) {
	c, s := newStubClient(t, api.ProfileStandard, Options{})
	ctx := context.Background()

	require.NoError(t, c.LoadView(ctx, api.ViewStrategies))
	st, _ := c.ViewState(api.ViewStrategies)
	grid, ok := st.Data.(*api.StrategyList).Find("s-grid")
	require.True(t, ok)
	require.True(t, grid.IsActive())
	s.ResetHits()

	res, err := c.ToggleStrategy(ctx, grid)
	require.NoError(t, err)
	assert.Equal(t, "策略pause成功", res.Message)
	assert.Equal(t, 1, s.Hits(http.MethodPost, "/api/strategies/s-grid/pause"))
	assert.Equal(t, 1, s.Hits(http.MethodGet, "/api/strategies"))

	st, _ = c.ViewState(api.ViewStrategies)
	grid, _ = st.Data.(*api.StrategyList).Find("s-grid")
	assert.Equal(t, api.StrategyPaused, grid.Status)

	notes := c.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelSuccess, notes[0].Level)
}

func TestClosePosition_MonitorRemovesRow(t *testing.T) {
	c, s := newStubClient(t, api.ProfileMonitor, Options{})
	ctx := context.Background()

	require.NoError(t, c.LoadView(ctx, api.ViewPositions))
	st, _ := c.ViewState(api.ViewPositions)
	pos, ok := st.Data.(*api.PositionList).Find("binance", "BTCUSDT")
	require.True(t, ok)
	s.ResetHits()

	res, err := c.ClosePosition(ctx, api.Position{Exchange: "binance", Symbol: "BTCUSDT", ID: pos.ID})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 1, s.Hits(http.MethodPost, "/api/monitor/close-position"))
	assert.Equal(t, 1, s.Hits(http.MethodGet, "/api/monitor/positions"))

	st, _ = c.ViewState(api.ViewPositions)
	_, ok = st.Data.(*api.PositionList).Find("binance", "BTCUSDT")
	assert.False(t, ok, "closed position is gone after the refetch")
	assert.Len(t, st.Data.(*api.PositionList).Positions, 1)
}

func TestSubmitAction_FailureLeavesStateAlone(t *testing.T) {
	c, s := newStubClient(t, api.ProfileStandard, Options{})
	ctx := context.Background()

	require.NoError(t, c.LoadView(ctx, api.ViewPositions))
	before, _ := c.ViewState(api.ViewPositions)
	s.ResetHits()

	s.FailNext(http.MethodPost, "/api/positions/p-1/close", http.StatusOK, gin.H{"status": "error", "message": "余额不足"})
	res, err := c.ClosePosition(ctx, api.Position{ID: "p-1", Symbol: "BTCUSDT"})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, sdkhttp.KindServer, sdkhttp.KindOf(err))
	assert.Equal(t, 0, s.Hits(http.MethodGet, "/api/positions"), "no refetch after a failed action")

	after, _ := c.ViewState(api.ViewPositions)
	assert.Same(t, before.Data, after.Data)
	assert.Equal(t, PhaseLoaded, after.Phase)

	notes := c.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelError, notes[0].Level)
	assert.Contains(t, notes[0].Message, "余额不足")
}

func TestSubmitAction_NetworkFailure(t *testing.T) {
	f := newFake(api.ProfileStandard)
	f.submit = func(context.Context, api.Action) (*api.ActionResult, error) {
		return nil, errors.Wrap(&sdkhttp.RequestError{Kind: sdkhttp.KindNetwork, Message: "connection refused"}, "close_position")
	}
	c := newClient(t, f, Options{})

	_, err := c.ClosePosition(context.Background(), api.Position{ID: "p-1", Symbol: "BTCUSDT"})
	require.Error(t, err)
	assert.Equal(t, 0, f.Calls(api.ViewPositions))
	assert.Contains(t, c.Notifications()[0].Message, "connection refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.actions.WithLabelValues("close_position", "error")))
}

func TestTestExchange_NoRefetch(t *testing.T) {
	c, s := newStubClient(t, api.ProfileStandard, Options{})
	ctx := context.Background()

	_, err := c.TestExchange(ctx, "binance", "k", "s")
	require.NoError(t, err)
	_, err = c.TestExchange(ctx, "binance", "", "")
	require.Error(t, err)
	assert.Contains(t, sdkhttp.MessageOf(err), "missing credentials")
	assert.Equal(t, 0, s.Hits(http.MethodGet, "/api/settings"))
}

func TestHandleAlert_UnsupportedOnMonitor(t *testing.T) {
	f := newFake(api.ProfileMonitor)
	c := newClient(t, f, Options{})

	_, err := c.HandleAlert(context.Background(), "a-1")
	assert.ErrorIs(t, err, api.ErrUnsupported)
	_, err = c.SaveRiskSettings(context.Background(), map[string]any{"max_leverage": 3})
	assert.ErrorIs(t, err, api.ErrUnsupported)
	assert.Equal(t, 0, f.Submitted())
	assert.Len(t, c.Notifications(), 2)
}

func TestSaveSettings_SchemaViolationSendsNothing(t *testing.T) {
	c, s := newStubClient(t, api.ProfileMonitor, Options{})
	ctx := context.Background()

	require.NoError(t, c.LoadView(ctx, api.ViewSettings))
	st, _ := c.ViewState(api.ViewSettings)
	values := settings.Clone(st.Data.(*api.SettingsBundle).Values)
	require.NoError(t, settings.Set(values, "risk_control.max_position_size", 1.5))
	s.ResetHits()

	_, err := c.SaveSettings(ctx, values)
	var ve *settings.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "risk_control.max_position_size", ve.Fields[0].Path)
	assert.Equal(t, 0, s.Hits(http.MethodPost, "/api/config/update"))
	assert.Equal(t, LevelError, c.Notifications()[0].Level)

	require.NoError(t, settings.Set(values, "risk_control.max_position_size", "0.4"))
	require.NoError(t, settings.Set(values, "initial_trade_usdt", "250"))
	_, err = c.SaveSettings(ctx, values)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Hits(http.MethodPost, "/api/config/update"))
	assert.Equal(t, 1, s.Hits(http.MethodGet, "/api/config"))

	st, _ = c.ViewState(api.ViewSettings)
	bundle := st.Data.(*api.SettingsBundle)
	require.NotNil(t, bundle.Bot)
	assert.Equal(t, "250", bundle.Bot.InitialTradeUSDT.String())
}

func TestSaveRiskSettings_Standard(t *testing.T) {
	c, s := newStubClient(t, api.ProfileStandard, Options{})
	ctx := context.Background()

	_, err := c.SaveRiskSettings(ctx, map[string]any{"max_leverage": 500})
	require.Error(t, err)
	assert.Equal(t, 0, s.Hits(http.MethodPost, "/api/risk/settings"))

	_, err = c.SaveRiskSettings(ctx, map[string]any{"max_leverage": "5", "max_daily_loss": 0.05})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Hits(http.MethodPost, "/api/risk/settings"))
	assert.Equal(t, 1, s.Hits(http.MethodGet, "/api/risk/metrics"))
}

func TestSubmitAction_Throttled(t *testing.T) {
	f := newFake(api.ProfileStandard)
	c := newClient(t, f, Options{ActionLimiter: ratelimit.NewTokenBucket(0.001, 1)})
	a := api.Action{Kind: api.ActionTestExchange, Description: "测试 binance 连接"}

	_, err := c.SubmitAction(context.Background(), a)
	require.NoError(t, err)
	_, err = c.SubmitAction(context.Background(), a)
	assert.True(t, IsThrottled(err))
	assert.Equal(t, 1, f.Submitted())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.actions.WithLabelValues("test_exchange", "throttled")))
}

func TestPendingConfirm(t *testing.T) {
	f := newFake(api.ProfileStandard)
	c := newClient(t, f, Options{})
	ctx := context.Background()

	a, err := c.Profile().ClosePosition(api.Position{ID: "p-1", Symbol: "BTCUSDT"})
	require.NoError(t, err)

	require.NoError(t, c.RequestConfirm(a, ""))
	p, ok := c.Pending().(ConfirmPending)
	require.True(t, ok)
	assert.Equal(t, "平仓 BTCUSDT?", p.Prompt)

	assert.True(t, c.Cancel())
	assert.IsType(t, NoPending{}, c.Pending())
	assert.Equal(t, 0, f.Submitted())
	assert.False(t, c.Cancel())

	require.NoError(t, c.RequestConfirm(a, "确认平仓?"))
	_, err = c.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Submitted())
	assert.Equal(t, 1, f.Calls(api.ViewPositions))
	assert.IsType(t, NoPending{}, c.Pending())

	_, err = c.Confirm(ctx)
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestNotifications_RingAndDismiss(t *testing.T) {
	c := newClient(t, newFake(api.ProfileStandard), Options{NotificationLimit: 3})
	for _, m := range []string{"a", "b", "c", "d", "e"} {
		c.Notify(LevelInfo, m)
	}
	notes := c.Notifications()
	require.Len(t, notes, 3)
	assert.Equal(t, []string{"c", "d", "e"}, []string{notes[0].Message, notes[1].Message, notes[2].Message})

	assert.True(t, c.Dismiss(notes[1].ID))
	assert.False(t, c.Dismiss("missing"))
	assert.Len(t, c.Notifications(), 2)

	c.ClearNotifications()
	assert.Empty(t, c.Notifications())
}

func TestChangedSignal(t *testing.T) {
	c := newClient(t, newFake(api.ProfileStandard), Options{})
	require.NoError(t, c.LoadView(context.Background(), api.ViewOverview))
	select {
	case <-c.Changed():
	default:
		t.Fatal("expected a change signal")
	}
}

func TestClose(t *testing.T) {
	newTicker, created := tickerFactory()
	c := newClient(t, newFake(api.ProfileStandard), Options{NewTicker: newTicker})
	ctx := context.Background()

	require.NoError(t, c.LoadView(ctx, api.ViewOverview))
	require.NoError(t, c.StartPolling(ctx, time.Second))
	ticker := <-created

	require.NoError(t, c.Close())
	assert.True(t, ticker.Stopped())
	snap := c.Snapshot()
	assert.True(t, snap.Closed)
	for _, st := range snap.Views {
		assert.Equal(t, PhaseClosed, st.Phase)
	}

	assert.ErrorIs(t, c.LoadView(ctx, api.ViewOverview), ErrClosed)
	assert.ErrorIs(t, c.SwitchView(ctx, api.ViewRisk), ErrClosed)
	assert.ErrorIs(t, c.StartPolling(ctx, time.Second), ErrClosed)
	_, err := c.SubmitAction(ctx, api.Action{Kind: api.ActionResetConfig})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, c.Close())
}

func TestClose_WaitsForManualLoads(t *testing.T) {
	release := make(chan struct{})
	f := newFake(api.ProfileStandard)
	f.fetch = func(_ context.Context, v api.View, _ int) (api.ViewData, error) {
		<-release
		return emptyData(v), nil
	}
	c := newClient(t, f, Options{})

	loaded := make(chan error, 1)
	go func() { loaded <- c.LoadView(context.Background(), api.ViewPositions) }()
	require.Eventually(t, func() bool { return f.Calls(api.ViewPositions) == 1 }, waitFor, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while a load was in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("Close did not return after the load finished")
	}
	require.NoError(t, <-loaded)
	st, _ := c.ViewState(api.ViewPositions)
	assert.Equal(t, PhaseClosed, st.Phase)
	assert.False(t, st.Loaded())
}
