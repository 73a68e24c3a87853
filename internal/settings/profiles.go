package settings

import "fmt"

// 标准后端 /api/settings 的设置结构
var standardSchema = mustSchema("standard",
	Field{Path: "exchanges.binance.enabled", Label: "Binance 启用", Kind: KindBool},
	Field{Path: "exchanges.binance.api_key", Label: "Binance API Key", Kind: KindSecret, Constraints: Constraints{MaxLength: 128}},
	Field{Path: "exchanges.binance.secret_key", Label: "Binance Secret", Kind: KindSecret, Constraints: Constraints{MaxLength: 128}},
	Field{Path: "exchanges.binance.testnet", Label: "Binance 测试网", Kind: KindBool},
	Field{Path: "exchanges.okx.enabled", Label: "OKX 启用", Kind: KindBool},
	Field{Path: "exchanges.okx.api_key", Label: "OKX API Key", Kind: KindSecret, Constraints: Constraints{MaxLength: 128}},
	Field{Path: "exchanges.okx.secret_key", Label: "OKX Secret", Kind: KindSecret, Constraints: Constraints{MaxLength: 128}},
	Field{Path: "exchanges.okx.testnet", Label: "OKX 测试网", Kind: KindBool},

	Field{Path: "notification.smtp.server", Label: "SMTP 服务器", Kind: KindString},
	Field{Path: "notification.smtp.email", Label: "通知邮箱", Kind: KindString},
	Field{Path: "notification.smtp.password", Label: "SMTP 密码", Kind: KindSecret},
	Field{Path: "notification.telegram.token", Label: "Telegram Token", Kind: KindSecret},
	Field{Path: "notification.telegram.chat_id", Label: "Telegram Chat ID", Kind: KindString},

	Field{Path: "risk.max_loss_per_trade", Label: "单笔最大亏损", Kind: KindNumber,
		Constraints: Constraints{Min: f64(0), ExclusiveMin: true, Max: f64(1)}},
	Field{Path: "risk.max_daily_loss", Label: "单日最大亏损", Kind: KindNumber,
		Constraints: Constraints{Min: f64(0), ExclusiveMin: true, Max: f64(1)}},
	Field{Path: "risk.max_leverage", Label: "最大杠杆", Kind: KindNumber,
		Constraints: Constraints{Min: f64(1), Max: f64(125)}},
	Field{Path: "risk.max_single_position", Label: "单仓位上限", Kind: KindNumber,
		Constraints: Constraints{Min: f64(0), ExclusiveMin: true, Max: f64(1)}},
	Field{Path: "risk.drawdown_alert", Label: "回撤告警", Kind: KindNumber,
		Constraints: Constraints{Min: f64(0), ExclusiveMin: true, Max: f64(1)}},
	Field{Path: "risk.volatility_alert", Label: "波动率告警", Kind: KindNumber,
		Constraints: Constraints{Min: f64(0), ExclusiveMin: true, Max: f64(1)}},

	Field{Path: "database.type", Label: "数据库类型", Kind: KindEnum,
		Constraints: Constraints{Options: []string{"postgresql", "mysql", "sqlite"}}},
	Field{Path: "database.host", Label: "数据库地址", Kind: KindString},
	Field{Path: "database.port", Label: "数据库端口", Kind: KindInteger,
		Constraints: Constraints{Min: f64(1), Max: f64(65535)}},
	Field{Path: "database.name", Label: "数据库名", Kind: KindString},
	Field{Path: "database.username", Label: "数据库用户", Kind: KindString},
	Field{Path: "database.password", Label: "数据库密码", Kind: KindSecret},
	Field{Path: "redis.host", Label: "Redis 地址", Kind: KindString},
	Field{Path: "redis.port", Label: "Redis 端口", Kind: KindInteger,
		Constraints: Constraints{Min: f64(1), Max: f64(65535)}},

	Field{Path: "logging.level", Label: "日志级别", Kind: KindEnum,
		Constraints: Constraints{Options: []string{"DEBUG", "INFO", "WARNING", "ERROR"}}},
	Field{Path: "logging.retention", Label: "日志保留天数", Kind: KindInteger,
		Constraints: Constraints{Min: f64(1), Max: f64(3650)}},
	Field{Path: "logging.console", Label: "控制台输出", Kind: KindBool},
)

// monitor 后端 /api/config 的扁平配置
var monitorSchema = mustSchema("monitor",
	Field{Path: "initial_trade_usdt", Label: "初始交易金额", Kind: KindNumber,
		Constraints: Constraints{Min: f64(0), ExclusiveMin: true}},
	Field{Path: "risk_control.max_position_size", Label: "最大持仓比例", Kind: KindNumber,
		Constraints: Constraints{Min: f64(0), ExclusiveMin: true, Max: f64(1)}},
	Field{Path: "risk_control.max_daily_loss", Label: "单日最大亏损", Kind: KindNumber,
		Constraints: Constraints{Min: f64(0), ExclusiveMin: true, Max: f64(1)}},
	Field{Path: "risk_control.max_drawdown", Label: "最大回撤", Kind: KindNumber,
		Constraints: Constraints{Min: f64(0), ExclusiveMin: true, Max: f64(1)}},
	Field{Path: "risk_control.max_daily_trades", Label: "单日最大交易数", Kind: KindInteger,
		Constraints: Constraints{Min: f64(0)}},
	Field{Path: "risk_control.position_timeout", Label: "持仓超时(秒)", Kind: KindInteger,
		Constraints: Constraints{Min: f64(0)}},
	Field{Path: "enabled_strategies", Label: "启用策略", Kind: KindBoolMap},
)

// SchemaFor 返回后端 profile 对应的设置 schema
func SchemaFor(profile string) (*Schema, error) {
	switch profile {
	case "standard":
		return standardSchema, nil
	case "monitor":
		return monitorSchema, nil
	default:
		return nil, fmt.Errorf("no settings schema for profile %q", profile)
	}
}

// RiskSchema 标准后端 /api/risk/settings 只接受 risk 分组
func RiskSchema() *Schema {
	return riskSchema
}

var riskSchema = func() *Schema {
	s, err := standardSchema.Section("risk")
	if err != nil {
		panic(err)
	}
	return s
}()
