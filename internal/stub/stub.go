// Package stub 提供一个内存中的假后端（gin），同时实现 standard 和 monitor 两种 API。
// 用于测试和本地演示：数据可变，记录每个端点的请求次数，可注入失败和阻塞。
package stub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "stub")

const (
	ProfileStandard = "standard"
	ProfileMonitor  = "monitor"
)

type strategy struct {
	ID          string
	Name        string
	Type        string
	Status      string
	Description string
	Config      map[string]any
	Trades      int
	WinRate     float64
	ProfitRate  float64
	TotalPnL    decimal.Decimal
}

type position struct {
	ID           string
	StrategyID   string
	Exchange     string
	Symbol       string
	Side         string
	Amount       decimal.Decimal
	EntryPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
	OpenedAt     time.Time
}

func (p *position) pnl() decimal.Decimal {
	diff := p.CurrentPrice.Sub(p.EntryPrice).Mul(p.Amount)
	if p.Side == "short" {
		return diff.Neg()
	}
	return diff
}

type alert struct {
	ID      string
	Level   string
	Title   string
	Message string
	Status  string
	Created time.Time
}

type trade struct {
	Time   time.Time
	Symbol string
	Side   string
	Price  decimal.Decimal
	Amount decimal.Decimal
	Profit decimal.Decimal
}

type failure struct {
	status int
	body   any
}

// Server 假后端
type Server struct {
	profile string
	started time.Time

	mu           sync.Mutex
	strategies   []*strategy
	positions    []*position
	alerts       []*alert
	trades       []trade
	settings     map[string]any
	riskSettings map[string]any
	config       map[string]any
	healthy      bool

	hits     map[string]int
	failures map[string][]failure
	holds    map[string]chan struct{}
}

// New 创建假后端，profile 为 standard 或 monitor
func New(profile string) *Server {
	if profile != ProfileMonitor {
		profile = ProfileStandard
	}
	s := &Server{
		profile:  profile,
		started:  time.Now().Add(-26*time.Hour - 3*time.Minute),
		healthy:  true,
		hits:     make(map[string]int),
		failures: make(map[string][]failure),
		holds:    make(map[string]chan struct{}),
	}
	s.seed()
	return s
}

// Profile 当前 profile
func (s *Server) Profile() string { return s.profile }

// Router gin 路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.track())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	if s.profile == ProfileMonitor {
		s.monitorRoutes(api)
	} else {
		s.standardRoutes(api)
	}
	return r
}

func key(method, path string) string { return method + " " + path }

// track 记录请求次数，执行注入的阻塞和失败
func (s *Server) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c.Request.Method, c.Request.URL.Path)

		s.mu.Lock()
		s.hits[k]++
		hold := s.holds[k]
		var fail *failure
		if queue := s.failures[k]; len(queue) > 0 {
			f := queue[0]
			fail = &f
			s.failures[k] = queue[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-c.Request.Context().Done():
				c.AbortWithStatus(http.StatusServiceUnavailable)
				return
			}
		}
		if fail != nil {
			log.Debugf("注入失败: %s -> %d", k, fail.status)
			switch body := fail.body.(type) {
			case string:
				c.Data(fail.status, "application/json", []byte(body))
				c.Abort()
			default:
				c.AbortWithStatusJSON(fail.status, body)
			}
			return
		}
		c.Next()
	}
}

// Hits 某个端点收到的请求数
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key(method, path)]
}

// ResetHits 清零计数
func (s *Server) ResetHits() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = make(map[string]int)
}

// FailNext 下一次请求该端点时返回 status 和 body（string 原样输出，其他类型编码为 JSON）
func (s *Server) FailNext(method, path string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(method, path)
	s.failures[k] = append(s.failures[k], failure{status: status, body: body})
}

// Hold 之后到达该端点的请求会阻塞，直到调用返回的 release
func (s *Server) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	k := key(method, path)
	s.mu.Lock()
	s.holds[k] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[k] == ch {
				delete(s.holds, k)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// SetHealthy 控制 /health 的返回
func (s *Server) SetHealthy(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = ok
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	ok := s.healthy
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Bot not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().Format("2006-01-02T15:04:05.000000")})
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }
