package settings

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monitorValues() map[string]any {
	return map[string]any{
		"initial_trade_usdt": "100.0",
		"risk_control": map[string]any{
			"max_position_size": "0.3",
			"max_daily_loss":    0.05,
			"max_daily_trades":  50,
		},
		"enabled_strategies": map[string]any{"grid": true, "trend": false},
		"exchange_limits":    map[string]any{"okx": 20},
	}
}

func TestMonitorSchema_AcceptsBackendConfig(t *testing.T) {
	s, err := SchemaFor("monitor")
	require.NoError(t, err)
	assert.NoError(t, s.Validate(monitorValues()))
}

func TestMonitorSchema_Rules(t *testing.T) {
	s, err := SchemaFor("monitor")
	require.NoError(t, err)

	cases := []struct {
		name  string
		path  string
		value any
	}{
		{"zero trade amount", "initial_trade_usdt", 0},
		{"negative trade amount", "initial_trade_usdt", "-5"},
		{"position size above one", "risk_control.max_position_size", 1.5},
		{"position size zero", "risk_control.max_position_size", "0"},
		{"non bool strategy flag", "enabled_strategies", map[string]any{"grid": "yes"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := monitorValues()
			require.NoError(t, Set(values, tc.path, tc.value))

			err := s.Validate(values)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.NotEmpty(t, ve.Fields)
			assert.Contains(t, ve.Fields[0].Path, tc.path)
		})
	}

	values := monitorValues()
	require.NoError(t, Set(values, "risk_control.max_position_size", 1))
	assert.NoError(t, s.Validate(values), "upper bound is inclusive")
}

func TestStandardSchema(t *testing.T) {
	s, err := SchemaFor("standard")
	require.NoError(t, err)

	values := map[string]any{
		"database": map[string]any{"type": "postgresql", "port": 5432},
		"risk":     map[string]any{"max_leverage": 5, "max_daily_loss": 0.05},
		"logging":  map[string]any{"level": "INFO", "retention": 30, "console": true},
	}
	assert.NoError(t, s.Validate(values))

	require.NoError(t, Set(values, "database.type", "oracle"))
	require.Error(t, s.Validate(values))

	_, err = SchemaFor("nope")
	assert.Error(t, err)
}

func TestRiskSchema_IsSectionOfStandard(t *testing.T) {
	s := RiskSchema()
	f, ok := s.Field("max_leverage")
	require.True(t, ok)
	assert.Equal(t, KindNumber, f.Kind)

	assert.NoError(t, s.Validate(map[string]any{"max_leverage": 3}))
	assert.Error(t, s.Validate(map[string]any{"max_leverage": 500}))
}

func TestDocument(t *testing.T) {
	s, err := SchemaFor("monitor")
	require.NoError(t, err)
	raw, err := s.Document()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	props := doc["properties"].(map[string]any)
	rc := props["risk_control"].(map[string]any)["properties"].(map[string]any)
	size := rc["max_position_size"].(map[string]any)
	assert.Equal(t, 0.0, size["exclusiveMinimum"])
	assert.Equal(t, 1.0, size["maximum"])
}

func TestNewSchema_RejectsBadFields(t *testing.T) {
	_, err := NewSchema("x", Field{Path: "a", Kind: KindBool}, Field{Path: "a", Kind: KindBool})
	assert.Error(t, err)
	_, err = NewSchema("x", Field{Path: "mode", Kind: KindEnum})
	assert.Error(t, err)
}

func TestLookupSetClone(t *testing.T) {
	values := monitorValues()
	v, ok := Lookup(values, "risk_control.max_position_size")
	require.True(t, ok)
	assert.Equal(t, "0.3", v)

	_, ok = Lookup(values, "risk_control.missing")
	assert.False(t, ok)
	_, ok = Lookup(values, "initial_trade_usdt.deeper")
	assert.False(t, ok)

	draft := Clone(values)
	require.NoError(t, Set(draft, "risk_control.max_position_size", "0.5"))
	v, _ = Lookup(values, "risk_control.max_position_size")
	assert.Equal(t, "0.3", v, "clone must not share nested maps")

	require.NoError(t, Set(draft, "new.nested.key", 1))
	v, ok = Lookup(draft, "new.nested.key")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	assert.Error(t, Set(draft, "initial_trade_usdt.x", 1))
}

func TestFieldParseAndDisplay(t *testing.T) {
	num := Field{Label: "n", Kind: KindNumber}
	v, err := num.Parse(" 0.25 ")
	require.NoError(t, err)
	assert.Equal(t, json.Number("0.25"), v)
	_, err = num.Parse("abc")
	assert.Error(t, err)

	b := Field{Label: "b", Kind: KindBool}
	v, err = b.Parse("on")
	require.NoError(t, err)
	assert.Equal(t, true, v)
	assert.Equal(t, "off", b.Display(false))

	enum := Field{Label: "e", Kind: KindEnum, Constraints: Constraints{Options: []string{"INFO", "DEBUG"}}}
	v, err = enum.Parse("debug")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", v)

	bm := Field{Label: "m", Kind: KindBoolMap}
	v, err = bm.Parse("grid=on, trend=off")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"grid": true, "trend": false}, v)
	assert.Equal(t, "grid=on,trend=off", bm.Display(v))

	secret := Field{Label: "s", Kind: KindSecret}
	assert.Equal(t, "******", secret.Display("abc"))
	assert.Equal(t, "", secret.Display(""))
}

func TestDecodeBotConfig(t *testing.T) {
	cfg, err := DecodeBotConfig(monitorValues())
	require.NoError(t, err)

	assert.True(t, cfg.InitialTradeUSDT.Equal(decimal.NewFromInt(100)))
	assert.True(t, cfg.RiskControl.MaxPositionSize.Equal(decimal.RequireFromString("0.3")))
	assert.True(t, cfg.RiskControl.MaxDailyLoss.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, 50, cfg.RiskControl.MaxDailyTrades)
	assert.Equal(t, 1, cfg.ActiveStrategies())
	assert.Equal(t, 20, cfg.ExchangeLimits["okx"])

	_, err = DecodeBotConfig(map[string]any{"initial_trade_usdt": "abc"})
	assert.Error(t, err)
}
