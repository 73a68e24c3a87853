package format

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	cases := map[float64]string{
		0.0523:  "5.23%",
		0:       "0.00%",
		1:       "100.00%",
		-0.125:  "-12.50%",
		0.00004: "0.00%",
	}
	for in, want := range cases {
		assert.Equal(t, want, Percent(in), "Percent(%v)", in)
	}
	assert.Equal(t, "-", Percent(math.NaN()))
	assert.Equal(t, "+5.23%", SignedPercent(0.0523))
	assert.Equal(t, "-5.23%", SignedPercent(-0.0523))
	assert.Equal(t, "0.00%", SignedPercent(0))
}

func TestPercent_Pure(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Equal(t, "5.23%", Percent(0.0523))
		assert.Equal(t, "$1,234.56", Currency(1234.56))
	}
}

func TestCurrency(t *testing.T) {
	assert.Equal(t, "$1,234.56", Currency(1234.56))
	assert.Equal(t, "$1,234,567.00", Currency(1234567))
	assert.Equal(t, "-$3.10", Currency(-3.1))
	assert.Equal(t, "$0.00", Currency(-0.001))
	assert.Equal(t, "$0.50", Currency(0.5))
	assert.Equal(t, "-", Currency(math.Inf(1)))

	assert.Equal(t, "$99.99", Money(decimal.RequireFromString("99.99")))
	assert.Equal(t, "+$12.00", SignedMoney(decimal.NewFromInt(12)))
	assert.Equal(t, "-$12.00", SignedMoney(decimal.NewFromInt(-12)))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "4s", Duration(4*time.Second))
	assert.Equal(t, "3m 4s", Duration(3*time.Minute+4*time.Second))
	assert.Equal(t, "2h 3m", Duration(2*time.Hour+3*time.Minute+59*time.Second))
	assert.Equal(t, "1d 2h 3m", Duration(26*time.Hour+3*time.Minute))
	assert.Equal(t, "0s", Duration(0))
}

func TestRiskClass_Boundaries(t *testing.T) {
	assert.Equal(t, RiskLow, RiskClass(0))
	assert.Equal(t, RiskLow, RiskClass(0.4999))
	assert.Equal(t, RiskMedium, RiskClass(0.5))
	assert.Equal(t, RiskMedium, RiskClass(0.7999))
	assert.Equal(t, RiskHigh, RiskClass(0.8))
	assert.Equal(t, RiskHigh, RiskClass(3))
	assert.Equal(t, RiskHigh, RiskClass(math.NaN()))
}

func TestRiskClass_Monotonic(t *testing.T) {
	rank := map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2}
	prev := rank[RiskClass(-1)]
	for v := -1.0; v <= 2.0; v += 0.001 {
		cur := rank[RiskClass(v)]
		assert.GreaterOrEqual(t, cur, prev, "RiskClass not monotonic at %v", v)
		prev = cur
	}
}

func TestThresholdClass(t *testing.T) {
	// 杠杆阈值 3 / 5
	assert.Equal(t, RiskLow, ThresholdClass(2.9, 3, 5))
	assert.Equal(t, RiskMedium, ThresholdClass(3, 3, 5))
	assert.Equal(t, RiskHigh, ThresholdClass(5, 3, 5))
}

func TestRiskClassFromLevel(t *testing.T) {
	assert.Equal(t, RiskHigh, RiskClassFromLevel(" HIGH "))
	assert.Equal(t, RiskMedium, RiskClassFromLevel("medium"))
	assert.Equal(t, RiskLow, RiskClassFromLevel("low"))
	assert.Equal(t, RiskUnknown, RiskClassFromLevel("???"))
	assert.Equal(t, "-", RiskUnknown.Label())
}
