package models

import "time"

// Config 结构体定义了经济系统的所有配置参数
type Config struct {
	DBPath    string          `json:"db_path"`   // 数据库文件路径
	Season    SeasonConfig    `json:"season"`    // 赛季与发行曲线配置
	Bank      BankConfig      `json:"bank"`      // 银行(质押)配置
	Exchange  ExchangeConfig  `json:"exchange"`  // 联合曲线交易所配置
	Treasury  TreasuryConfig  `json:"treasury"`  // 国库钱包配置
	Scheduler SchedulerConfig `json:"scheduler"` // 定时任务配置
	LogConfig LogConfig       `json:"log"`       // 日志配置
}

// SeasonConfig 定义了一个赛季的宏观经济常量
type SeasonConfig struct {
	ID                int64   `json:"id"`                  // 赛季编号
	StartDate         string  `json:"start_date"`          // 赛季开始时间 (RFC3339)
	LengthDays        int     `json:"length_days"`         // 赛季长度（天）
	ReferralA         float64 `json:"referral_a"`          // 推荐池曲线常量 A: E(t) = A * e^(-k*t)
	ReferralK         float64 `json:"referral_k"`          // 推荐池衰减常量 k
	CashbackBase      float64 `json:"cashback_base"`       // 返现池基数 B: P(t) = B * (t+1)^1.5
	MaxReferralReward float64 `json:"max_referral_reward"` // 单笔推荐奖励上限
	MinReferralReward float64 `json:"min_referral_reward"` // 单笔推荐奖励下限（曲线尾部保底）
	ReferralPoolCap   float64 `json:"referral_pool_cap"`   // 推荐池硬顶（创世时注入国库）
	CashbackPoolCap   float64 `json:"cashback_pool_cap"`   // 返现池硬顶（创世时注入储备）
}

// BankConfig 定义了质押利率相关参数，支持热更新
type BankConfig struct {
	LiquidAPRDaily      float64 `json:"liquid_apr_daily"`       // 活期质押日利率
	LockedAPRDaily      float64 `json:"locked_apr_daily"`       // 定期债券日利率
	LockedPeriodDays    int     `json:"locked_period_days"`     // 债券默认锁定期（天）
	PenaltyMax          float64 `json:"penalty_max"`            // 提前赎回最大罚金比例
	PenaltyMin          float64 `json:"penalty_min"`            // 提前赎回最小罚金比例
	DynamicYield        bool    `json:"dynamic_yield"`          // 是否按 TVL 份额动态计算利率
	StakingAllocation   float64 `json:"staking_allocation"`     // 动态模式: 当日返现池划给质押的比例
	LockedWeight        float64 `json:"locked_weight"`          // 动态模式: 定期份额权重倍数
	MaxDailyYieldLiquid float64 `json:"max_daily_yield_liquid"` // 动态模式: 活期日利率熔断上限
	MaxDailyYieldLocked float64 `json:"max_daily_yield_locked"` // 动态模式: 定期日利率熔断上限
}

// ExchangeConfig 定义了联合曲线做市商的初始参数
type ExchangeConfig struct {
	BasePrice         float64 `json:"base_price"`           // 价格函数基数: price(s) = base * multiplier^s
	Multiplier        float64 `json:"multiplier"`           // 价格函数乘数 (>1)
	SellBurnRate      float64 `json:"sell_burn_rate"`       // 卖出时的燃烧费率 (如 0.05)
	MarketOpenOnStart bool    `json:"market_open_on_start"` // 创世时市场是否开放
}

// TreasuryConfig 定义了系统保留钱包的账户ID
type TreasuryConfig struct {
	TreasuryWallet        string `json:"treasury_wallet"`         // 国库钱包（推荐池发行方）
	CashbackReserveWallet string `json:"cashback_reserve_wallet"` // 返现储备钱包
}

// SchedulerConfig 定义了定时任务的 cron 表达式
type SchedulerConfig struct {
	ClosingSpec      string `json:"closing_spec"`       // 每日结算任务（幂等，可高频触发）
	ConfigReloadSpec string `json:"config_reload_spec"` // 配置热加载任务
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// Side 定义了交易方向的类型
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// EntryDirection 定义了流水条目的方向
type EntryDirection string

const (
	Credit EntryDirection = "CREDIT"
	Debit  EntryDirection = "DEBIT"
)

// Asset 标识流水条目作用于哪一个余额字段
type Asset string

const (
	AssetCoins        Asset = "COINS"
	AssetGlue         Asset = "GLUE"
	AssetStakedLiquid Asset = "STAKED_LIQUID"
)

// 流水条目的业务分类
const (
	CategorySystem   = "SYSTEM"
	CategoryBank     = "BANK"
	CategoryInvest   = "INVEST"
	CategoryExchange = "EXCHANGE"
)

// BondStatus 定义了定期债券的生命周期状态
type BondStatus string

const (
	BondActive   BondStatus = "ACTIVE"
	BondRedeemed BondStatus = "REDEEMED"
	BondBroken   BondStatus = "BROKEN"
)

// SeasonState 是赛季级的经济快照，系统内唯一的全局可变记录。
// 只有 DailyTreasury 和 Exchange 两个写入方。
type SeasonState struct {
	SeasonID         int64     `json:"season_id"`
	SeasonStart      time.Time `json:"season_start"`
	CurrentDay       int       `json:"current_day"`        // 用户可见的天数计数器
	LastProcessedDay int       `json:"last_processed_day"` // 幂等水位线：最后一次成功结算的天
	LastUpdate       time.Time `json:"last_update"`

	// 每日发行的奖励池
	ReferralPoolAvailable float64 `json:"referral_pool_available"` // 每日重置（烧掉剩余）
	CashbackPoolAvailable float64 `json:"cashback_pool_available"` // 累积（未领取滚存）
	CurrentReferralReward float64 `json:"current_referral_reward"`

	// 联合曲线参数
	GluePriceBase         float64 `json:"glue_price_base"`
	GluePriceMultiplier   float64 `json:"glue_price_multiplier"`
	GlueSupplyCirculating int64   `json:"glue_supply_circulating"` // 只能由交易执行或管理员铸造/销毁改变
	MarketOpen            bool    `json:"market_open"`

	// 审计累计值
	TotalBurned        float64 `json:"total_burned"`
	TotalFeesCollected float64 `json:"total_fees_collected"`
	TotalStakedLiquid  float64 `json:"total_staked_liquid"`
	TotalStakedLocked  float64 `json:"total_staked_locked"`
	LastAPRLiquid      float64 `json:"last_apr_liquid"`
	LastAPRLocked      float64 `json:"last_apr_locked"`
}

// LedgerEntry 是钱包流水中的一条不可变记录，只增不改。
type LedgerEntry struct {
	ID          string         `json:"id"`
	Direction   EntryDirection `json:"direction"`
	Asset       Asset          `json:"asset"`
	Amount      float64        `json:"amount"`
	Reason      string         `json:"reason"`
	Category    string         `json:"category"`
	ReferenceID string         `json:"reference_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Wallet 是单个账户的资金状态与完整流水
type Wallet struct {
	AccountID           string        `json:"account_id"`
	BalanceCoins        float64       `json:"balance_coins"`
	BalanceGlue         float64       `json:"balance_glue"`
	BalanceStakedLiquid float64       `json:"balance_staked_liquid"`
	History             []LedgerEntry `json:"history"` // 只追加，不可变
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// BalanceOf 返回指定资产的当前余额
func (w *Wallet) BalanceOf(asset Asset) float64 {
	switch asset {
	case AssetCoins:
		return w.BalanceCoins
	case AssetGlue:
		return w.BalanceGlue
	case AssetStakedLiquid:
		return w.BalanceStakedLiquid
	}
	return 0
}

// LockedBond 是一张定期债券：利率在买入时冻结，按日复利。
type LockedBond struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Principal     float64    `json:"principal"`
	CurrentValue  float64    `json:"current_value"` // ACTIVE 期间单调不减
	PurchasedAt   time.Time  `json:"purchased_at"`
	MaturityAt    time.Time  `json:"maturity_at"`
	ContractedAPR float64    `json:"contracted_apr"` // 买入时冻结的日利率
	Status        BondStatus `json:"status"`
}

// Trade 是一笔已执行的交易记录，写入后不可变，仅用于重建K线。
type Trade struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Side        Side      `json:"side"`
	AmountGlue  int64     `json:"amount_glue"`
	AmountCoins float64   `json:"amount_coins"`
	PriceOpen   float64   `json:"price_open"`
	PriceClose  float64   `json:"price_close"`
	PriceHigh   float64   `json:"price_high"`
	PriceLow    float64   `json:"price_low"`
	Timestamp   time.Time `json:"timestamp"`
}

// Candle 是固定时间窗口内交易的 OHLCV 聚合
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Quote 是一次只读询价的结果
type Quote struct {
	Side        Side    `json:"side"`
	Amount      int64   `json:"amount"`
	TotalCoins  float64 `json:"total_coins"`  // 买入总成本 / 卖出总所得
	PriceStart  float64 `json:"price_start"`  // 询价起点的单价
	PriceEnd    float64 `json:"price_end"`    // 询价终点的单价
	PriceImpact float64 `json:"price_impact"` // multiplier^Δ - 1
}
