package settings

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BotConfig monitor 后端 /api/config 的类型化视图。
// 后端把 Decimal 序列化为字符串，这里统一解码成 decimal。
type BotConfig struct {
	InitialTradeUSDT  decimal.Decimal `mapstructure:"initial_trade_usdt"`
	RiskControl       RiskControl     `mapstructure:"risk_control"`
	EnabledStrategies map[string]bool `mapstructure:"enabled_strategies"`
	ExchangeLimits    map[string]int  `mapstructure:"exchange_limits"`
	Extra             map[string]any  `mapstructure:",remain"`
}

// RiskControl 风控参数
type RiskControl struct {
	MaxPositionSize  decimal.Decimal `mapstructure:"max_position_size"`
	MaxDailyLoss     decimal.Decimal `mapstructure:"max_daily_loss"`
	MaxDrawdown      decimal.Decimal `mapstructure:"max_drawdown"`
	MaxDailyTrades   int             `mapstructure:"max_daily_trades"`
	PositionTimeout  int             `mapstructure:"position_timeout"`
	MinLiquidity     decimal.Decimal `mapstructure:"min_liquidity"`
	MaxPriceChange1h decimal.Decimal `mapstructure:"max_price_change_1h"`
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHook 把字符串/数字解码成 decimal.Decimal
func decimalHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case string:
		if v == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(v)
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return nil, fmt.Errorf("cannot decode %s into decimal", from)
	}
}

// DecodeBotConfig 宽松解码 monitor 配置 map（数字可以是字符串，bool 可以是 0/1）
func DecodeBotConfig(values map[string]any) (*BotConfig, error) {
	var cfg BotConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(decimalHook),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build config decoder")
	}
	if err := dec.Decode(values); err != nil {
		return nil, errors.Wrap(err, "decode bot config")
	}
	return &cfg, nil
}

// ActiveStrategies 已启用的策略数量
func (c *BotConfig) ActiveStrategies() int {
	n := 0
	for _, on := range c.EnabledStrategies {
		if on {
			n++
		}
	}
	return n
}
