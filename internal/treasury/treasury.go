package treasury

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"

	"glue-economy-go/internal/config"
	"glue-economy-go/internal/emission"
	"glue-economy-go/internal/interest"
	"glue-economy-go/internal/ledger"
	"glue-economy-go/internal/logger"
	"glue-economy-go/internal/models"
	"glue-economy-go/internal/persistence"
)

const oneDay = 24 * time.Hour

// Treasury 是每日结算的编排者。真正的状态机状态只有一个:
// 赛季记录上的幂等水位线 last_processed_day。
// 结算的第4-7步（发行、利息、国库扣款、水位线提交）全部在
// 同一个存储事务内执行，崩溃时要么整天生效要么整天重来，
// 不存在国库被重复扣款的窗口。
type Treasury struct {
	store    persistence.Store
	ledger   *ledger.Ledger
	interest *interest.Engine
	provider *config.Provider
	now      func() time.Time
}

// NewTreasury 创建每日结算编排器
func NewTreasury(store persistence.Store, l *ledger.Ledger, engine *interest.Engine, provider *config.Provider) *Treasury {
	return &Treasury{
		store:    store,
		ledger:   l,
		interest: engine,
		provider: provider,
		now:      time.Now,
	}
}

// SetClock 替换时间源，仅用于测试
func (t *Treasury) SetClock(now func() time.Time) {
	t.now = now
}

// ClosingResult 描述一次结算调用的结果
type ClosingResult struct {
	Day        int  // 本次处理（或已处理过）的天
	Settled    bool // false 表示幂等闸门拦下了重复调用，未做任何经济变更
	RefPool    float64
	CashPool   float64
	UnitReward float64
}

// RunDailyClosing 执行一次每日结算。由调度器周期性触发，
// 幂等: 同一天内的重复调用是保证无操作的，这是系统对
// 调度器重复/重叠触发的主要防御，而不是锁。
func (t *Treasury) RunDailyClosing() (ClosingResult, error) {
	cfg := t.provider.Snapshot()
	var result ClosingResult

	err := t.store.Update(func(txn *badger.Txn) error {
		state, err := t.store.Season(txn, cfg.Season.ID)
		if err != nil {
			return err
		}
		if state == nil {
			// 结算任务永远不创建赛季，赛季由管理员的创世动作显式引导
			return fmt.Errorf("%w: season %d (run genesis first)", models.ErrNoActiveSeason, cfg.Season.ID)
		}

		now := t.now()
		targetDay := 0
		if diff := now.Sub(state.SeasonStart); diff > 0 {
			targetDay = int(diff / oneDay)
		}

		// 幂等闸门: 这一天（或更晚的天）已经结算过，不做任何经济变更。
		// 只在用户可见的天数计数器漂移时刷新它。
		if state.LastProcessedDay >= targetDay {
			if state.CurrentDay != targetDay {
				state.CurrentDay = targetDay
				state.LastUpdate = now
				if err := t.store.SaveSeason(txn, state); err != nil {
					return err
				}
			}
			result = ClosingResult{Day: state.LastProcessedDay, Settled: false}
			return nil
		}

		// 步骤4: 发行曲线
		refPool := emission.ReferralPool(targetDay, cfg.Season)
		cashPool := emission.CashbackPool(targetDay, cfg.Season)
		unitReward := emission.UnitaryReferralReward(targetDay, cfg.Season)

		state.ReferralPoolAvailable = refPool           // 推荐池: 烧掉昨日剩余，重置为当日值
		state.CashbackPoolAvailable += cashPool         // 返现池: 未领取滚存
		state.CurrentReferralReward = unitReward

		// 步骤5: 利息
		if err := t.interest.ApplyDailyInterestTx(txn, state, targetDay, &cfg); err != nil {
			return fmt.Errorf("apply daily interest: %w", err)
		}

		// 步骤6: 发行记账。奖励不是凭空铸造的:
		// 创世时预注资的国库/储备钱包被扣掉当日发行额，带天数引用作为去重键。
		dayRef := fmt.Sprintf("day-%d", targetDay)
		if refPool > 0 {
			if _, err := t.ledger.DebitTx(txn, cfg.Treasury.TreasuryWallet, models.AssetCoins,
				refPool, fmt.Sprintf("Emission Day %d", targetDay), models.CategorySystem, dayRef); err != nil {
				return fmt.Errorf("debit treasury wallet: %w", err)
			}
		}
		if cashPool > 0 {
			if _, err := t.ledger.DebitTx(txn, cfg.Treasury.CashbackReserveWallet, models.AssetCoins,
				cashPool, fmt.Sprintf("Emission Day %d", targetDay), models.CategorySystem, dayRef); err != nil {
				return fmt.Errorf("debit cashback reserve wallet: %w", err)
			}
		}

		// 步骤7: 提交水位线
		state.CurrentDay = targetDay
		state.LastProcessedDay = targetDay
		state.LastUpdate = now
		if err := t.store.SaveSeason(txn, state); err != nil {
			return err
		}

		result = ClosingResult{
			Day:        targetDay,
			Settled:    true,
			RefPool:    refPool,
			CashPool:   cashPool,
			UnitReward: unitReward,
		}
		return nil
	})

	if err != nil {
		// 水位线未被推进（事务整体回滚），下一次调度会从头重试整天
		logger.S().Errorf("每日结算失败: %v", err)
		return ClosingResult{}, err
	}

	if result.Settled {
		logger.S().Infof("第 %d 天结算完成。推荐池 %.0f | 返现池新增 %.0f | 单笔推荐奖励 %.0f",
			result.Day, result.RefPool, result.CashPool, result.UnitReward)
	}
	return result, nil
}

// Genesis 是创世动作: 创建赛季记录并给国库与返现储备钱包
// 预注入各自的硬顶。之后的每日发行都从这两个钱包里释放，
// 发行模型是“按释放铸造”而不是无约束的凭空创造。
// 重复创世会被拒绝。
func (t *Treasury) Genesis() (*models.SeasonState, error) {
	cfg := t.provider.Snapshot()

	start, err := time.Parse(time.RFC3339, cfg.Season.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid season start date %q: %w", cfg.Season.StartDate, err)
	}

	var state *models.SeasonState
	err = t.store.Update(func(txn *badger.Txn) error {
		existing, err := t.store.Season(txn, cfg.Season.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("season %d already bootstrapped (started %s)",
				existing.SeasonID, existing.SeasonStart.Format("2006-01-02"))
		}

		state = &models.SeasonState{
			SeasonID:              cfg.Season.ID,
			SeasonStart:           start,
			CurrentDay:            0,
			LastProcessedDay:      -1, // 还没有任何一天被结算
			LastUpdate:            t.now(),
			CurrentReferralReward: cfg.Season.MaxReferralReward,
			GluePriceBase:         cfg.Exchange.BasePrice,
			GluePriceMultiplier:   cfg.Exchange.Multiplier,
			MarketOpen:            cfg.Exchange.MarketOpenOnStart,
		}
		if err := t.store.SaveSeason(txn, state); err != nil {
			return err
		}

		seasonRef := fmt.Sprintf("season-%d", cfg.Season.ID)
		if _, err := t.ledger.CreditTx(txn, cfg.Treasury.TreasuryWallet, models.AssetCoins,
			cfg.Season.ReferralPoolCap, fmt.Sprintf("Season %d genesis: referral pool cap", cfg.Season.ID),
			models.CategorySystem, seasonRef); err != nil {
			return err
		}
		if _, err := t.ledger.CreditTx(txn, cfg.Treasury.CashbackReserveWallet, models.AssetCoins,
			cfg.Season.CashbackPoolCap, fmt.Sprintf("Season %d genesis: cashback pool cap", cfg.Season.ID),
			models.CategorySystem, seasonRef); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.S().Infof("赛季 %d 创世完成: 始于 %s，国库预注资 %.0f + %.0f",
		state.SeasonID, state.SeasonStart.Format("2006-01-02"),
		cfg.Season.ReferralPoolCap, cfg.Season.CashbackPoolCap)
	return state, nil
}

// CurrentState 返回赛季状态快照，供报表与外部查询使用
func (t *Treasury) CurrentState() (*models.SeasonState, error) {
	cfg := t.provider.Snapshot()
	var state *models.SeasonState
	err := t.store.View(func(txn *badger.Txn) error {
		var err error
		state, err = t.store.Season(txn, cfg.Season.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: season %d", models.ErrNoActiveSeason, cfg.Season.ID)
	}
	return state, nil
}
