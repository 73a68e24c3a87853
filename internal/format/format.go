// Package format 提供看板使用的纯格式化函数：金额、百分比、时长和风险分级。
// 所有函数无副作用，同样的输入永远得到同样的输出。
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = ""
)

// 风险分级边界：[0, 0.5) low, [0.5, 0.8) medium, [0.8, +inf) high
const (
	MediumRiskFrom = 0.5
	HighRiskFrom   = 0.8
)

// Currency 格式化美元金额，例如 1234.5 -> "$1,234.50"，-3 -> "-$3.00"
func Currency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	rounded := math.Round(v*100) / 100
	if rounded == 0 {
		return "$0.00"
	}
	sign := ""
	if rounded < 0 {
		sign = "-"
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", math.Abs(rounded))
}

// Money decimal 版本的 Currency
func Money(d decimal.Decimal) string {
	return Currency(d.InexactFloat64())
}

// SignedMoney 带正负号的金额，用于盈亏
func SignedMoney(d decimal.Decimal) string {
	if d.Round(2).IsPositive() {
		return "+" + Money(d)
	}
	return Money(d)
}

// Percent 比例转百分比，两位小数：0.0523 -> "5.23%"
func Percent(ratio float64) string {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return "-"
	}
	v := math.Round(ratio*10000) / 100
	if v == 0 {
		v = 0 // 去掉 -0
	}
	return fmt.Sprintf("%.2f%%", v)
}

// SignedPercent 带正号的百分比：0.0523 -> "+5.23%"
func SignedPercent(ratio float64) string {
	s := Percent(ratio)
	if s != "-" && !strings.HasPrefix(s, "-") && s != "0.00%" {
		return "+" + s
	}
	return s
}

// Duration 紧凑时长：1d 2h 3m / 2h 3m / 3m 4s / 4s
func Duration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// RiskClass 按 0~1 的风险分数分级。NaN 按高风险处理。
func RiskClass(v float64) RiskLevel {
	switch {
	case math.IsNaN(v):
		return RiskHigh
	case v < MediumRiskFrom:
		return RiskLow
	case v < HighRiskFrom:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ThresholdClass 按子指标自己的阈值分级：v < medium 低，medium <= v < high 中，其余高
func ThresholdClass(v, medium, high float64) RiskLevel {
	switch {
	case math.IsNaN(v):
		return RiskHigh
	case v < medium:
		return RiskLow
	case v < high:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// RiskClassFromLevel 解析后端给出的等级字符串
func RiskClassFromLevel(level string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "low", "safe":
		return RiskLow
	case "medium", "warning", "warn":
		return RiskMedium
	case "high", "danger", "critical":
		return RiskHigh
	default:
		return RiskUnknown
	}
}

// Label 中文标签
func (l RiskLevel) Label() string {
	switch l {
	case RiskLow:
		return "低"
	case RiskMedium:
		return "中"
	case RiskHigh:
		return "高"
	default:
		return "-"
	}
}
