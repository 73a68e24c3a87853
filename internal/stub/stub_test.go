package stub

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestStandard_StrategyControl(t *testing.T) {
	s := New(ProfileStandard)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	code, body := do(t, srv, http.MethodPost, "/api/strategies/s-trend/start", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "策略start成功", body["message"])
	assert.Equal(t, "active", s.StrategyStatus("s-trend"))

	code, body = do(t, srv, http.MethodPost, "/api/strategies/s-trend/explode", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "无效的操作", body["detail"])

	code, _ = do(t, srv, http.MethodPost, "/api/strategies/nope/stop", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 1, s.Hits(http.MethodPost, "/api/strategies/s-trend/start"))
}

func TestMonitor_ConfigValidation(t *testing.T) {
	s := New(ProfileMonitor)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	code, body := do(t, srv, http.MethodPost, "/api/config/update", map[string]any{
		"risk_control": map[string]any{"max_position_size": 1.5},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["detail"], "最大持仓比例")

	code, body = do(t, srv, http.MethodPost, "/api/config/update", map[string]any{
		"initial_trade_usdt": 250,
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "250", s.Config()["initial_trade_usdt"])

	code, _ = do(t, srv, http.MethodPost, "/api/config/reset", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "100.0", s.Config()["initial_trade_usdt"])
}

func TestMonitor_ClosePosition(t *testing.T) {
	s := New(ProfileMonitor)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	before := s.PositionCount()
	code, body := do(t, srv, http.MethodPost, "/api/monitor/close-position",
		map[string]string{"exchange": "binance", "symbol": "BTCUSDT"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, before-1, s.PositionCount())

	code, _ = do(t, srv, http.MethodPost, "/api/monitor/close-position",
		map[string]string{"exchange": "binance", "symbol": "BTCUSDT"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFailNextAndHits(t *testing.T) {
	s := New(ProfileStandard)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	s.FailNext(http.MethodGet, "/api/strategies", http.StatusInternalServerError, map[string]string{"detail": "boom"})
	code, body := do(t, srv, http.MethodGet, "/api/strategies", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "boom", body["detail"])

	code, _ = do(t, srv, http.MethodGet, "/api/strategies", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, s.Hits(http.MethodGet, "/api/strategies"))

	s.ResetHits()
	assert.Equal(t, 0, s.Hits(http.MethodGet, "/api/strategies"))
}

func TestHold(t *testing.T) {
	s := New(ProfileStandard)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	release := s.Hold(http.MethodGet, "/api/positions")
	done := make(chan int, 1)
	go func() {
		code, _ := do(t, srv, http.MethodGet, "/api/positions", nil)
		done <- code
	}()

	select {
	case <-done:
		t.Fatal("request should be held")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	release()
	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("request not released")
	}
}

func TestHealth(t *testing.T) {
	s := New(ProfileMonitor)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	code, body := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	s.SetHealthy(false)
	code, _ = do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestPyTimedelta(t *testing.T) {
	assert.Equal(t, "0:05:10", pyTimedelta(5*time.Minute+10*time.Second))
	assert.Equal(t, "1 day, 2:03:00", pyTimedelta(26*time.Hour+3*time.Minute))
	assert.Equal(t, "3 days, 0:00:01", pyTimedelta(72*time.Hour+time.Second))
}
