package stub

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func defaultMonitorConfig() map[string]any {
	return map[string]any{
		"initial_trade_usdt": "100.0",
		"risk_control": map[string]any{
			"max_position_size":   "0.3",
			"max_daily_loss":      "0.05",
			"max_drawdown":        "0.15",
			"max_daily_trades":    50,
			"position_timeout":    3600,
			"min_liquidity":       "100000",
			"max_price_change_1h": "0.05",
		},
		"enabled_strategies": map[string]any{"arbitrage": true, "trend": false, "grid": true, "funding": false},
		"exchange_limits":    map[string]any{"okx": 20, "binance": 20},
	}
}

func (s *Server) monitorRoutes(api *gin.RouterGroup) {
	monitor := api.Group("/monitor")
	monitor.GET("/overview", s.handleMonOverview)
	monitor.GET("/positions", s.handleMonPositions)
	monitor.GET("/trades", s.handleMonTrades)
	monitor.GET("/performance", s.handleMonPerformance)
	monitor.POST("/close-position", s.handleMonClosePosition)

	strategy := api.Group("/strategy")
	strategy.GET("/list", s.handleMonStrategies)
	strategy.POST("/:name/toggle", s.handleMonToggle)
	strategy.POST("/:name/update", s.handleMonStrategyUpdate)
	strategy.POST("/:name/create", s.handleMonStrategyCreate)

	api.GET("/config", s.handleMonConfig)
	cfg := api.Group("/config")
	cfg.POST("/update", s.handleMonConfigUpdate)
	cfg.POST("/reset", s.handleMonConfigReset)
}

// pyTimedelta 按 "1 day, 2:03:04.000000" 的格式输出
func pyTimedelta(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	sec := int((d % time.Minute) / time.Second)
	clock := fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	switch {
	case days == 1:
		return "1 day, " + clock
	case days > 1:
		return fmt.Sprintf("%d days, %s", days, clock)
	default:
		return clock
	}
}

func (s *Server) handleMonOverview(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	equity := map[string]decimal.Decimal{"okx": d("52000.5"), "binance": d("48000")}
	_, pnl := s.exposure()
	for _, p := range s.positions {
		equity[p.Exchange] = equity[p.Exchange].Add(p.pnl())
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "running",
		"uptime": pyTimedelta(time.Since(s.started)),
		"total_equity": gin.H{
			"okx":     equity["okx"].String(),
			"binance": equity["binance"].String(),
		},
		"daily_pnl":          pnl.String(),
		"max_drawdown":       "0.04",
		"active_positions":   len(s.positions),
		"total_trades_today": len(s.trades),
	})
}

func (s *Server) handleMonPositions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]gin.H, 0, len(s.positions))
	for _, p := range s.positions {
		list = append(list, gin.H{
			"exchange":      p.Exchange,
			"symbol":        p.Symbol,
			"side":          p.Side,
			"amount":        p.Amount.String(),
			"entry_price":   p.EntryPrice.String(),
			"current_price": p.CurrentPrice.String(),
			"pnl":           p.pnl().String(),
			"timestamp":     p.OpenedAt.UnixMilli(),
		})
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleMonTrades(c *gin.Context) {
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	trades := s.trades
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	list := make([]gin.H, 0, len(trades))
	for _, t := range trades {
		list = append(list, gin.H{
			"time":   t.Time.Format("2006-01-02T15:04:05.000000"),
			"symbol": t.Symbol,
			"profit": t.Profit.String(),
		})
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleMonPerformance(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.trades)
	wins := 0
	profit := decimal.Zero
	for _, t := range s.trades {
		if t.Profit.IsPositive() {
			wins++
		}
		profit = profit.Add(t.Profit)
	}
	winRate := 0.0
	if total > 0 {
		winRate = float64(wins) / float64(total) * 100
	}
	c.JSON(http.StatusOK, gin.H{
		"total_trades":      total,
		"successful_trades": wins,
		"failed_trades":     total - wins,
		"total_profit":      profit.String(),
		"max_drawdown":      "0.04",
		"win_rate":          winRate,
	})
}

func (s *Server) handleMonClosePosition(c *gin.Context) {
	var req struct {
		Exchange string `json:"exchange"`
		Symbol   string `json:"symbol"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Exchange == "" || req.Symbol == "" {
		detail(c, http.StatusBadRequest, "exchange and symbol are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.positions {
		if p.Exchange == req.Exchange && p.Symbol == req.Symbol {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"status": "success", "message": fmt.Sprintf("%s %s 已平仓", req.Exchange, req.Symbol)})
			return
		}
	}
	detail(c, http.StatusNotFound, "Position not found")
}

func (s *Server) handleMonStrategies(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]gin.H, 0, len(s.strategies))
	for _, st := range s.strategies {
		cfg := st.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		list = append(list, gin.H{
			"name":        st.Name,
			"is_active":   st.Status == "active",
			"description": st.Description,
			"config":      cfg,
		})
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleMonToggle(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := c.Param("name")
	st := s.findStrategy(name)
	if st == nil {
		detail(c, http.StatusNotFound, "Strategy not found")
		return
	}
	state := "enabled"
	if st.Status == "active" {
		st.Status = "paused"
		state = "disabled"
	} else {
		st.Status = "active"
	}
	c.JSON(http.StatusOK, gin.H{
		"name":      name,
		"is_active": st.Status == "active",
		"message":   fmt.Sprintf("Strategy %s %s", name, state),
	})
}

func (s *Server) handleMonStrategyUpdate(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusBadRequest, "invalid config")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.findStrategy(c.Param("name"))
	if st == nil {
		detail(c, http.StatusNotFound, "Strategy not found")
		return
	}
	if st.Config == nil {
		st.Config = map[string]any{}
	}
	mergeMaps(st.Config, body)
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "策略配置已更新"})
}

func (s *Server) handleMonStrategyCreate(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		body = map[string]any{}
	}
	name := c.Param("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findStrategy(name) != nil {
		detail(c, http.StatusBadRequest, "Strategy already exists")
		return
	}
	s.strategies = append(s.strategies, &strategy{ID: name, Name: name, Type: name, Status: "paused", Config: body})
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "策略已创建"})
}

func (s *Server) handleMonConfig(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.config)
}

func (s *Server) handleMonConfigUpdate(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusBadRequest, "配置验证失败: invalid json")
		return
	}
	validated, err := validateMonitorConfig(body)
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	mergeMaps(s.config, validated)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "配置更新成功"})
}

func (s *Server) handleMonConfigReset(c *gin.Context) {
	s.mu.Lock()
	s.config = defaultMonitorConfig()
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "配置已重置为默认值"})
}

// validateMonitorConfig 与真实后端相同的校验规则
func validateMonitorConfig(body map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if v, ok := body["initial_trade_usdt"]; ok {
		amount, err := decimal.NewFromString(fmt.Sprint(v))
		if err != nil || !amount.IsPositive() {
			return nil, fmt.Errorf("配置验证失败: 初始交易金额必须大于0")
		}
		out["initial_trade_usdt"] = amount.String()
	}
	if risk, ok := body["risk_control"].(map[string]any); ok {
		rc := map[string]any{}
		for k, v := range risk {
			rc[k] = v
		}
		if v, ok := risk["max_position_size"]; ok {
			size, err := decimal.NewFromString(fmt.Sprint(v))
			if err != nil || !size.IsPositive() || size.GreaterThan(decimal.NewFromInt(1)) {
				return nil, fmt.Errorf("配置验证失败: 最大持仓比例必须在0-1之间")
			}
			rc["max_position_size"] = size.String()
		}
		out["risk_control"] = rc
	}
	if es, ok := body["enabled_strategies"].(map[string]any); ok {
		flags := map[string]any{}
		for k, v := range es {
			b, isBool := v.(bool)
			flags[k] = isBool && b
		}
		out["enabled_strategies"] = flags
	}
	return out, nil
}

// Config 当前配置的副本（monitor）
func (s *Server) Config() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMap(s.config)
}

// PositionCount 当前持仓数
func (s *Server) PositionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// StrategyStatus 策略当前状态，找不到时返回空串
func (s *Server) StrategyStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.findStrategy(id); st != nil {
		return st.Status
	}
	return ""
}
