package exchange

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/jxskiss/base62"

	"glue-economy-go/internal/config"
	"glue-economy-go/internal/ledger"
	"glue-economy-go/internal/logger"
	"glue-economy-go/internal/models"
	"glue-economy-go/internal/persistence"
)

// Exchange 是联合曲线做市商。报价只读、可以被任意频繁地调用；
// 成交是原子的: 钱包两条腿、供给计数器、流水对、交易记录在
// 同一个事务中提交。同一市场上的并发成交通过全局互斥锁严格串行化:
// 每笔交易必须读到一致的供给并在下一笔读取前提交新供给。
type Exchange struct {
	store    persistence.Store
	ledger   *ledger.Ledger
	provider *config.Provider
	now      func() time.Time

	// tradeMu 串行化所有针对共享供给计数器的成交
	tradeMu sync.Mutex
}

// NewExchange 创建交易所组件
func NewExchange(store persistence.Store, l *ledger.Ledger, provider *config.Provider) *Exchange {
	return &Exchange{
		store:    store,
		ledger:   l,
		provider: provider,
		now:      time.Now,
	}
}

// SetClock 替换时间源，仅用于测试
func (e *Exchange) SetClock(now func() time.Time) {
	e.now = now
}

// loadSeason 取当前赛季状态，不存在时报配置错误
func (e *Exchange) loadSeason(txn *badger.Txn) (*models.SeasonState, error) {
	cfg := e.provider.Snapshot()
	state, err := e.store.Season(txn, cfg.Season.ID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: season %d", models.ErrNoActiveSeason, cfg.Season.ID)
	}
	return state, nil
}

// Quote 对指定方向和数量做只读询价，不改变任何状态。
// 供前端实时预览使用；成交前会按执行时价格重新校验，报价不锁价。
func (e *Exchange) Quote(side models.Side, amount int64) (*models.Quote, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidAmount, amount)
	}

	cfg := e.provider.Snapshot()
	var quote *models.Quote
	err := e.store.View(func(txn *badger.Txn) error {
		state, err := e.loadSeason(txn)
		if err != nil {
			return err
		}

		base := state.GluePriceBase
		mult := state.GluePriceMultiplier
		supply := state.GlueSupplyCirculating

		switch side {
		case models.Buy:
			quote = &models.Quote{
				Side:        models.Buy,
				Amount:      amount,
				TotalCoins:  buyCost(base, mult, supply, amount),
				PriceStart:  spotPrice(base, mult, supply),
				PriceEnd:    spotPrice(base, mult, supply+amount),
				PriceImpact: priceImpact(mult, amount),
			}
		case models.Sell:
			if amount > supply {
				return fmt.Errorf("%w: sell %d exceeds circulating supply %d",
					models.ErrInvalidAmount, amount, supply)
			}
			gross := sellGross(base, mult, supply, amount)
			quote = &models.Quote{
				Side:        models.Sell,
				Amount:      amount,
				TotalCoins:  gross * (1 - cfg.Exchange.SellBurnRate),
				PriceStart:  spotPrice(base, mult, supply),
				PriceEnd:    spotPrice(base, mult, supply-amount),
				PriceImpact: priceImpact(mult, amount),
			}
		default:
			return fmt.Errorf("%w: unknown side %q", models.ErrInvalidAmount, side)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// TradeResult 是一次成交的回执
type TradeResult struct {
	Trade           *models.Trade
	NewBalanceCoins float64
	NewBalanceGlue  float64
}

// ExecuteTrade 执行一笔成交。执行时重新校验市场开关与余额，
// 绝不信任过期的报价。失败的交易不会自动重试，价格已经移动，
// 重新提交是有经济含义的决定，必须由调用方显式做出。
func (e *Exchange) ExecuteTrade(accountID string, side models.Side, amount int64) (*TradeResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidAmount, amount)
	}
	if side != models.Buy && side != models.Sell {
		return nil, fmt.Errorf("%w: unknown side %q", models.ErrInvalidAmount, side)
	}

	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	cfg := e.provider.Snapshot()
	var result *TradeResult

	err := e.store.Update(func(txn *badger.Txn) error {
		state, err := e.loadSeason(txn)
		if err != nil {
			return err
		}
		if !state.MarketOpen {
			return models.ErrMarketClosed
		}

		base := state.GluePriceBase
		mult := state.GluePriceMultiplier
		supplyBefore := state.GlueSupplyCirculating

		ts := e.now()
		tradeID := string(base62.FormatInt(ts.UnixNano()))

		var trade *models.Trade
		var newCoins, newGlue float64

		switch side {
		case models.Buy:
			cost := buyCost(base, mult, supplyBefore, amount)

			// 执行时校验余额；DebitTx 在不足时返回 ErrInsufficientFunds
			newCoins, err = e.ledger.DebitTx(txn, accountID, models.AssetCoins, cost,
				"Exchange: buy GLUE", models.CategoryExchange, tradeID)
			if err != nil {
				return err
			}
			newGlue, err = e.ledger.CreditTx(txn, accountID, models.AssetGlue, float64(amount),
				"Exchange: buy GLUE", models.CategoryExchange, tradeID)
			if err != nil {
				return err
			}

			state.GlueSupplyCirculating = supplyBefore + amount

			priceOpen := spotPrice(base, mult, supplyBefore)
			priceClose := spotPrice(base, mult, state.GlueSupplyCirculating)
			trade = &models.Trade{
				ID:          tradeID,
				AccountID:   accountID,
				Side:        models.Buy,
				AmountGlue:  amount,
				AmountCoins: cost,
				PriceOpen:   priceOpen,
				PriceClose:  priceClose,
				PriceHigh:   math.Max(priceOpen, priceClose),
				PriceLow:    math.Min(priceOpen, priceClose),
				Timestamp:   ts,
			}

		case models.Sell:
			// 卖出量超过流通供给是拒绝，不是截断
			if amount > supplyBefore {
				return fmt.Errorf("%w: sell %d exceeds circulating supply %d",
					models.ErrInvalidAmount, amount, supplyBefore)
			}

			gross := sellGross(base, mult, supplyBefore, amount)
			burn := gross * cfg.Exchange.SellBurnRate
			payout := gross - burn

			newGlue, err = e.ledger.DebitTx(txn, accountID, models.AssetGlue, float64(amount),
				"Exchange: sell GLUE", models.CategoryExchange, tradeID)
			if err != nil {
				return err
			}
			newCoins, err = e.ledger.CreditTx(txn, accountID, models.AssetCoins, payout,
				"Exchange: sell GLUE", models.CategoryExchange, tradeID)
			if err != nil {
				return err
			}

			state.GlueSupplyCirculating = supplyBefore - amount
			state.TotalBurned += burn

			priceOpen := spotPrice(base, mult, supplyBefore)
			priceClose := spotPrice(base, mult, state.GlueSupplyCirculating)
			trade = &models.Trade{
				ID:          tradeID,
				AccountID:   accountID,
				Side:        models.Sell,
				AmountGlue:  amount,
				AmountCoins: payout,
				PriceOpen:   priceOpen,
				PriceClose:  priceClose,
				PriceHigh:   math.Max(priceOpen, priceClose),
				PriceLow:    math.Min(priceOpen, priceClose),
				Timestamp:   ts,
			}
		}

		if err := e.store.AppendTrade(txn, trade); err != nil {
			return err
		}
		if err := e.store.SaveSeason(txn, state); err != nil {
			return err
		}

		result = &TradeResult{Trade: trade, NewBalanceCoins: newCoins, NewBalanceGlue: newGlue}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.S().Infof("成交: %s %s %d GLUE @ %.4f -> %.4f (coins %.4f)",
		accountID, side, amount, result.Trade.PriceOpen, result.Trade.PriceClose, result.Trade.AmountCoins)
	return result, nil
}

// SpotPrice 返回当前边际价格
func (e *Exchange) SpotPrice() (float64, error) {
	var price float64
	err := e.store.View(func(txn *badger.Txn) error {
		state, err := e.loadSeason(txn)
		if err != nil {
			return err
		}
		price = spotPrice(state.GluePriceBase, state.GluePriceMultiplier, state.GlueSupplyCirculating)
		return nil
	})
	return price, err
}

// AdminUpdateParams 是管理员对曲线参数的直接覆盖，绕过正常成交路径。
// nil 表示保持原值。
func (e *Exchange) AdminUpdateParams(base, multiplier *float64) error {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	return e.store.Update(func(txn *badger.Txn) error {
		state, err := e.loadSeason(txn)
		if err != nil {
			return err
		}
		if base != nil {
			state.GluePriceBase = *base
		}
		if multiplier != nil {
			state.GluePriceMultiplier = *multiplier
		}
		logger.S().Warnf("管理员更新曲线参数: base=%.4f multiplier=%.6f",
			state.GluePriceBase, state.GluePriceMultiplier)
		return e.store.SaveSeason(txn, state)
	})
}

// ToggleMarket 设置市场开关（管理员动作）
func (e *Exchange) ToggleMarket(open bool) error {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	return e.store.Update(func(txn *badger.Txn) error {
		state, err := e.loadSeason(txn)
		if err != nil {
			return err
		}
		state.MarketOpen = open
		logger.S().Warnf("管理员切换市场状态: open=%v", open)
		return e.store.SaveSeason(txn, state)
	})
}

// AdminAdjustSupply 是管理员的显式铸造/销毁，供给被钳制为非负。
// 除此之外 glue_supply_circulating 只能被成交改变。
func (e *Exchange) AdminAdjustSupply(delta int64) (int64, error) {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	var supply int64
	err := e.store.Update(func(txn *badger.Txn) error {
		state, err := e.loadSeason(txn)
		if err != nil {
			return err
		}
		state.GlueSupplyCirculating += delta
		if state.GlueSupplyCirculating < 0 {
			state.GlueSupplyCirculating = 0
		}
		supply = state.GlueSupplyCirculating
		logger.S().Warnf("管理员调整供给: delta=%d 新供给=%d", delta, supply)
		return e.store.SaveSeason(txn, state)
	})
	return supply, err
}
