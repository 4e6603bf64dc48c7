package interest

import (
	"math"

	"github.com/dgraph-io/badger/v3"

	"glue-economy-go/internal/emission"
	"glue-economy-go/internal/ledger"
	"glue-economy-go/internal/logger"
	"glue-economy-go/internal/models"
	"glue-economy-go/internal/persistence"
)

// Engine 负责把一天的复利一次性地压进所有合格账户与债券。
// 实现方式是集合级的批量乘法而不是逐户读改写:
// 整批变更跟随调用方的事务一起提交，并发交易改动单个余额时不会丢失更新。
type Engine struct {
	store  persistence.Store
	ledger *ledger.Ledger
}

// NewEngine 创建利息引擎
func NewEngine(store persistence.Store, l *ledger.Ledger) *Engine {
	return &Engine{store: store, ledger: l}
}

// Rates 是一次结算解析出的当日利率
type Rates struct {
	Liquid float64 // 活期质押日利率
	Locked float64 // 当日对外报价的定期日利率（新债券按此冻结）
}

// resolveRates 在调用时刻从配置快照解析当日利率。
// 固定模式直接取配置值；动态模式按原始份额分红:
// 奖励池 = 当日返现池 * 质押划拨比例，份额 = 活期TVL + 定期TVL*权重，
// 基础收益率 = 池 / 份额，并受熔断上限约束。份额为零时返回零利率
// （没有质押者，池子留到明天）。
func resolveRates(day int, cfg *models.Config, totalLiquid, totalLocked float64) Rates {
	bank := cfg.Bank
	if !bank.DynamicYield {
		return Rates{Liquid: bank.LiquidAPRDaily, Locked: bank.LockedAPRDaily}
	}

	rewardPool := emission.CashbackPool(day, cfg.Season) * bank.StakingAllocation
	shares := totalLiquid + totalLocked*bank.LockedWeight
	if shares <= 0 || rewardPool <= 0 {
		return Rates{}
	}

	baseYield := rewardPool / shares
	if baseYield > bank.MaxDailyYieldLiquid {
		logger.S().Infof("活期利率触发熔断: 计算值 %.4f%% > 上限 %.4f%%",
			baseYield*100, bank.MaxDailyYieldLiquid*100)
		baseYield = bank.MaxDailyYieldLiquid
	}

	return Rates{
		Liquid: baseYield,
		Locked: math.Min(baseYield*bank.LockedWeight, bank.MaxDailyYieldLocked),
	}
}

// ApplyDailyInterestTx 在调用方的事务内应用一天的利息:
// 所有正的活期质押余额乘以 (1+活期利率)，所有 ACTIVE 债券的现值
// 乘以 (1+该债券买入时冻结的利率)。当日利率与TVL快照写回赛季状态。
// 除这两类余额字段外没有任何副作用：利息是结构性利率，不写流水。
func (e *Engine) ApplyDailyInterestTx(txn *badger.Txn, state *models.SeasonState, day int, cfg *models.Config) error {
	// 1. 扫描 TVL（动态利率的分母）
	totalLiquid := 0.0
	err := e.store.ForEachWallet(txn, func(w *models.Wallet) error {
		if w.BalanceStakedLiquid > 0 {
			totalLiquid += w.BalanceStakedLiquid
		}
		return nil
	})
	if err != nil {
		return err
	}

	totalLocked := 0.0
	var active []*models.LockedBond
	err = e.store.ForEachBond(txn, func(b *models.LockedBond) error {
		if b.Status != models.BondActive {
			return nil
		}
		totalLocked += b.CurrentValue
		bond := *b
		active = append(active, &bond)
		return nil
	})
	if err != nil {
		return err
	}

	// 2. 解析当日利率
	rates := resolveRates(day, cfg, totalLiquid, totalLocked)
	logger.S().Infof("第 %d 天利率: 活期 %.4f%% | 定期 %.4f%% (活期TVL %.2f, 定期TVL %.2f)",
		day, rates.Liquid*100, rates.Locked*100, totalLiquid, totalLocked)

	// 3. 活期: 集合级批量乘法
	if rates.Liquid > 0 && totalLiquid > 0 {
		count, newTotal, err := e.ledger.MultiplyStakedLiquidTx(txn, 1+rates.Liquid)
		if err != nil {
			return err
		}
		totalLiquid = newTotal
		logger.S().Infof("活期复利完成: %d 个账户", count)
	}

	// 4. 定期: 每张债券按买入时冻结的利率复利，现值单调不减
	newTotalLocked := 0.0
	for _, bond := range active {
		if bond.ContractedAPR > 0 {
			bond.CurrentValue *= 1 + bond.ContractedAPR
		}
		newTotalLocked += bond.CurrentValue
		if err := e.store.SaveBond(txn, bond); err != nil {
			return err
		}
	}
	if len(active) > 0 {
		totalLocked = newTotalLocked
	}

	// 5. 指标写回赛季状态（由调用方统一提交）
	state.LastAPRLiquid = rates.Liquid
	state.LastAPRLocked = rates.Locked
	state.TotalStakedLiquid = totalLiquid
	state.TotalStakedLocked = totalLocked
	return nil
}

// CurrentLockedRate 返回当前对外报价的定期日利率，供银行给新债券定价。
// 动态模式下取赛季状态里最近一次结算出的利率。
func CurrentLockedRate(state *models.SeasonState, cfg *models.Config) float64 {
	if cfg.Bank.DynamicYield && state.LastAPRLocked > 0 {
		return state.LastAPRLocked
	}
	return cfg.Bank.LockedAPRDaily
}
