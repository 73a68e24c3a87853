package stub

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *Server) seed() {
	now := time.Now()
	s.strategies = []*strategy{
		{ID: "s-grid", Name: "BTC 网格", Type: "grid", Status: "active", Description: "BTC 区间网格",
			Config: map[string]any{"grid_numbers": 10}, Trades: 42, WinRate: 0.62, ProfitRate: 0.081, TotalPnL: d("1520.35")},
		{ID: "s-trend", Name: "ETH 趋势", Type: "trend", Status: "paused", Description: "均线趋势跟随",
			Config: map[string]any{"ma_fast": 7, "ma_slow": 25}, Trades: 17, WinRate: 0.47, ProfitRate: -0.012, TotalPnL: d("-88.10")},
	}
	s.positions = []*position{
		{ID: "p-1", StrategyID: "s-grid", Exchange: "binance", Symbol: "BTCUSDT", Side: "long",
			Amount: d("0.5"), EntryPrice: d("60000"), CurrentPrice: d("61250.5"), OpenedAt: now.Add(-5 * time.Hour)},
		{ID: "p-2", StrategyID: "s-trend", Exchange: "okx", Symbol: "ETH-USDT-SWAP", Side: "short",
			Amount: d("3"), EntryPrice: d("3100"), CurrentPrice: d("3050"), OpenedAt: now.Add(-26 * time.Hour)},
	}
	s.alerts = []*alert{
		{ID: "a-1", Level: "high", Title: "杠杆过高", Message: "当前杠杆 5.2x 超过阈值", Status: "active", Created: now.Add(-10 * time.Minute)},
		{ID: "a-2", Level: "medium", Title: "波动率上升", Message: "BTC 1h 波动率 3.1%", Status: "active", Created: now.Add(-time.Hour)},
	}
	s.trades = []trade{
		{Time: now.Add(-30 * time.Minute), Symbol: "BTCUSDT", Side: "buy", Price: d("61000"), Amount: d("0.1"), Profit: d("12.5")},
		{Time: now.Add(-2 * time.Hour), Symbol: "ETH-USDT-SWAP", Side: "sell", Price: d("3080"), Amount: d("1"), Profit: d("-4.2")},
	}
	s.settings = defaultStandardSettings()
	s.riskSettings = map[string]any{}
	s.config = defaultMonitorConfig()
	if s.profile == ProfileMonitor {
		for _, st := range s.strategies {
			st.ID, st.Name = st.Type, st.Type
		}
		s.strategies = append(s.strategies,
			&strategy{ID: "arbitrage", Name: "arbitrage", Type: "arbitrage", Status: "active", Description: "跨交易所价差套利"},
			&strategy{ID: "funding", Name: "funding", Type: "funding", Status: "paused", Description: "资金费率套利"},
		)
	}
}

func defaultStandardSettings() map[string]any {
	return map[string]any{
		"database": map[string]any{"type": "postgresql", "host": "localhost", "port": 5432, "name": "trading_bot", "username": "", "password": ""},
		"redis":    map[string]any{"host": "localhost", "port": 6379},
		"exchanges": map[string]any{
			"binance": map[string]any{"enabled": false, "api_key": "", "secret_key": "", "testnet": false},
			"okx":     map[string]any{"enabled": false, "api_key": "", "secret_key": "", "testnet": false},
		},
		"notification": map[string]any{
			"smtp":     map[string]any{"server": "", "email": "", "password": ""},
			"telegram": map[string]any{"token": "", "chat_id": ""},
		},
		"risk": map[string]any{
			"max_loss_per_trade": 0.02, "max_daily_loss": 0.05, "max_leverage": 5,
			"max_single_position": 0.2, "drawdown_alert": 0.1, "volatility_alert": 0.03,
		},
		"logging": map[string]any{"level": "INFO", "retention": 30, "console": true},
	}
}

func (s *Server) standardRoutes(api *gin.RouterGroup) {
	api.GET("/dashboard", s.handleDashboard)

	api.GET("/strategies", s.handleStrategies)
	api.POST("/strategies", s.handleStrategyCreate)
	api.POST("/strategies/:id/:action", s.handleStrategyControl)

	api.GET("/positions", s.handlePositions)
	api.POST("/positions/:id/close", s.handlePositionClose)

	api.GET("/risk/metrics", s.handleRiskMetrics)
	api.POST("/risk/alerts/:id/handle", s.handleAlert)
	api.POST("/risk/settings", s.handleRiskSettings)

	api.GET("/settings", s.handleSettingsGet)
	api.POST("/settings", s.handleSettingsUpdate)
	api.POST("/exchanges/:id/test", s.handleExchangeTest)
}

func strategyJSON(st *strategy) gin.H {
	return gin.H{
		"id": st.ID, "name": st.Name, "type": st.Type, "status": st.Status,
		"description": st.Description, "config": st.Config,
		"totalTrades": st.Trades, "winRate": st.WinRate, "profitRate": st.ProfitRate,
		"totalPnL": st.TotalPnL.InexactFloat64(),
	}
}

func (s *Server) exposure() (total decimal.Decimal, pnl decimal.Decimal) {
	for _, p := range s.positions {
		total = total.Add(p.Amount.Mul(p.CurrentPrice))
		pnl = pnl.Add(p.pnl())
	}
	return total, pnl
}

const stubEquity = 100000

func (s *Server) handleDashboard(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, pnl := s.exposure()
	leverage := total.Div(decimal.NewFromInt(stubEquity)).InexactFloat64()
	var active []gin.H
	for _, st := range s.strategies {
		if st.Status == "active" {
			active = append(active, strategyJSON(st))
		}
	}
	trades := make([]gin.H, 0, len(s.trades))
	for _, t := range s.trades {
		trades = append(trades, gin.H{
			"time": t.Time.Format(time.RFC3339), "symbol": t.Symbol, "side": t.Side,
			"price": t.Price.InexactFloat64(), "amount": t.Amount.InexactFloat64(), "profit": t.Profit.InexactFloat64(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"accountStats": gin.H{
			"totalValue":      total.InexactFloat64(),
			"dayPnL":          pnl.InexactFloat64(),
			"dayChange":       pnl.Div(decimal.NewFromInt(stubEquity)).InexactFloat64(),
			"totalPositions":  len(s.positions),
			"availableMargin": decimal.NewFromInt(stubEquity).Sub(total).InexactFloat64(),
			"riskLevel":       s.riskLevel(leverage),
			"leverage":        leverage,
		},
		"charts": gin.H{
			"equity": []gin.H{
				{"date": time.Now().AddDate(0, 0, -1).Format("2006-01-02"), "pnl": 120.5, "equity": 99800},
				{"date": time.Now().Format("2006-01-02"), "pnl": pnl.InexactFloat64(), "equity": stubEquity},
			},
			"strategyPnL": []gin.H{},
		},
		"activeStrategies": active,
		"recentTrades":     trades,
	})
}

func (s *Server) riskLevel(leverage float64) string {
	switch {
	case leverage >= 5:
		return "high"
	case leverage >= 3:
		return "medium"
	default:
		return "low"
	}
}

func (s *Server) handleStrategies(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]gin.H, 0, len(s.strategies))
	for _, st := range s.strategies {
		list = append(list, strategyJSON(st))
	}
	c.JSON(http.StatusOK, gin.H{"strategies": list})
}

func (s *Server) handleStrategyCreate(c *gin.Context) {
	var req struct {
		Name   string         `json:"name"`
		Type   string         `json:"type"`
		Config map[string]any `json:"config"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		detail(c, http.StatusInternalServerError, "创建策略失败")
		return
	}
	st := &strategy{ID: uuid.NewString(), Name: req.Name, Type: req.Type, Status: "stopped", Config: req.Config}
	s.mu.Lock()
	s.strategies = append(s.strategies, st)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "策略创建成功", "strategy": strategyJSON(st)})
}

func (s *Server) findStrategy(id string) *strategy {
	for _, st := range s.strategies {
		if st.ID == id {
			return st
		}
	}
	return nil
}

func (s *Server) handleStrategyControl(c *gin.Context) {
	action := c.Param("action")
	if action != "start" && action != "pause" && action != "stop" {
		detail(c, http.StatusBadRequest, "无效的操作")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.findStrategy(c.Param("id"))
	if st == nil {
		detail(c, http.StatusNotFound, "策略不存在")
		return
	}
	switch action {
	case "start":
		st.Status = "active"
	case "pause":
		if st.Status == "active" {
			st.Status = "paused"
		}
	case "stop":
		st.Status = "stopped"
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("策略%s成功", action)})
}

func (s *Server) handlePositions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]gin.H, 0, len(s.positions))
	for _, p := range s.positions {
		cost := p.Amount.Mul(p.EntryPrice)
		roi := 0.0
		if cost.IsPositive() {
			roi = p.pnl().Div(cost).InexactFloat64()
		}
		list = append(list, gin.H{
			"id": p.ID, "strategyId": p.StrategyID, "exchange": p.Exchange, "symbol": p.Symbol,
			"direction": p.Side, "amount": p.Amount.InexactFloat64(),
			"entryPrice": p.EntryPrice.InexactFloat64(), "currentPrice": p.CurrentPrice.InexactFloat64(),
			"unrealizedPnL": p.pnl().InexactFloat64(), "realizedPnL": 0, "roi": roi,
			"status": "open", "createdAt": p.OpenedAt.Format(time.RFC3339),
		})
	}
	total, pnl := s.exposure()
	leverage := total.Div(decimal.NewFromInt(stubEquity)).InexactFloat64()
	c.JSON(http.StatusOK, gin.H{
		"positions": list,
		"stats": gin.H{
			"totalValue": total.InexactFloat64(), "positionCount": len(s.positions),
			"unrealizedPnL": pnl.InexactFloat64(), "marginUsage": leverage / 10,
			"riskLevel": s.riskLevel(leverage), "leverage": leverage,
		},
	})
}

func (s *Server) handlePositionClose(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	for i, p := range s.positions {
		if p.ID == id {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "平仓成功"})
			return
		}
	}
	detail(c, http.StatusNotFound, "持仓不存在")
}

func (s *Server) handleRiskMetrics(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total, _ := s.exposure()
	leverage := total.Div(decimal.NewFromInt(stubEquity)).InexactFloat64()
	alerts := make([]gin.H, 0, len(s.alerts))
	for _, a := range s.alerts {
		alerts = append(alerts, gin.H{
			"id": a.ID, "level": a.Level, "title": a.Title, "message": a.Message,
			"status": a.Status, "created_at": a.Created.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"metrics": gin.H{
			"overall": gin.H{"score": 0.55, "level": "medium", "updateTime": time.Now().UTC().Format("2006-01-02T15:04:05.000000")},
			"position": gin.H{"leverage": leverage, "concentration": 0.25, "volatility": 0.012},
			"capital": gin.H{
				"margin_usage": leverage / 10, "daily_loss": 0.01, "drawdown": 0.12,
				"available_margin": decimal.NewFromInt(stubEquity).Sub(total).InexactFloat64(),
			},
		},
		"alerts": alerts,
	})
}

func (s *Server) handleAlert(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == c.Param("id") {
			a.Status = "handled"
			c.JSON(http.StatusOK, gin.H{"message": "警报处理成功"})
			return
		}
	}
	detail(c, http.StatusNotFound, "警报不存在")
}

func (s *Server) handleRiskSettings(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusInternalServerError, "更新风控设置失败")
		return
	}
	s.mu.Lock()
	s.riskSettings = body
	if risk, ok := s.settings["risk"].(map[string]any); ok {
		for k, v := range body {
			risk[k] = v
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "风控设置更新成功"})
}

func (s *Server) handleSettingsGet(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.settings)
}

func (s *Server) handleSettingsUpdate(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusInternalServerError, "更新系统设置失败")
		return
	}
	s.mu.Lock()
	mergeMaps(s.settings, body)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "设置更新成功"})
}

func (s *Server) handleExchangeTest(c *gin.Context) {
	var creds struct {
		APIKey    string `json:"apiKey"`
		SecretKey string `json:"secretKey"`
	}
	if err := c.ShouldBindJSON(&creds); err != nil {
		detail(c, http.StatusInternalServerError, "测试交易所连接失败")
		return
	}
	if creds.APIKey == "" || creds.SecretKey == "" {
		c.JSON(http.StatusOK, gin.H{"status": "failed", "message": "missing credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

// mergeMaps 递归合并
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeMaps(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

// Settings 当前设置的副本（standard）
func (s *Server) Settings() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMap(s.settings)
}

func cloneMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			out[k] = cloneMap(sub)
			continue
		}
		out[k] = v
	}
	return out
}
