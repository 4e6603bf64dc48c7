package ledger

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/jxskiss/base62"

	"glue-economy-go/internal/models"
	"glue-economy-go/internal/persistence"
)

// Ledger 是全系统唯一的余额变更入口。
// 两个原语: Credit / Debit。每次调用在同一个事务里完成两件事:
// 追加一条不可变流水 + 调整目标余额，外部读者永远看不到中间状态。
// 账本不变量: 任一账户任一资产的 CREDIT 总和减 DEBIT 总和恒等于当前余额。
type Ledger struct {
	store persistence.Store
	now   func() time.Time
}

// NewLedger 创建账本组件
func NewLedger(store persistence.Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// SetClock 替换时间源，仅用于测试
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// newEntryID 生成紧凑的流水ID (base62编码的纳秒时间戳)
func newEntryID(ts time.Time) string {
	return string(base62.FormatInt(ts.UnixNano()))
}

// loadOrCreateWallet 读取钱包，不存在时初始化一个空钱包。
// 账户身份由外部协作方保证，账本只负责资金状态。
func (l *Ledger) loadOrCreateWallet(txn *badger.Txn, accountID string) (*models.Wallet, error) {
	wallet, err := l.store.Wallet(txn, accountID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		ts := l.now()
		wallet = &models.Wallet{AccountID: accountID, CreatedAt: ts, UpdatedAt: ts}
	}
	return wallet, nil
}

// applyEntry 在钱包上原子地执行一条流水: 校验、改余额、追加历史。
func (l *Ledger) applyEntry(wallet *models.Wallet, direction models.EntryDirection, asset models.Asset, amount float64, reason, category, referenceID string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %s amount %.4f", models.ErrInvalidAmount, direction, amount)
	}

	delta := amount
	if direction == models.Debit {
		if wallet.BalanceOf(asset) < amount {
			return fmt.Errorf("%w: account %s has %.4f %s, need %.4f",
				models.ErrInsufficientFunds, wallet.AccountID, wallet.BalanceOf(asset), asset, amount)
		}
		delta = -amount
	}

	switch asset {
	case models.AssetCoins:
		wallet.BalanceCoins += delta
	case models.AssetGlue:
		wallet.BalanceGlue += delta
	case models.AssetStakedLiquid:
		wallet.BalanceStakedLiquid += delta
	default:
		return fmt.Errorf("%w: unknown asset %q", models.ErrInvalidAmount, asset)
	}

	ts := l.now()
	wallet.History = append(wallet.History, models.LedgerEntry{
		ID:          newEntryID(ts),
		Direction:   direction,
		Asset:       asset,
		Amount:      amount,
		Reason:      reason,
		Category:    category,
		ReferenceID: referenceID,
		Timestamp:   ts,
	})
	wallet.UpdatedAt = ts
	return nil
}

// CreditTx 在调用方的事务内给账户入账，返回新余额。
// 组合原语: 上层组件(国库/交易所/银行)用它把多笔账变动收进一个提交。
func (l *Ledger) CreditTx(txn *badger.Txn, accountID string, asset models.Asset, amount float64, reason, category, referenceID string) (float64, error) {
	wallet, err := l.loadOrCreateWallet(txn, accountID)
	if err != nil {
		return 0, err
	}
	if err := l.applyEntry(wallet, models.Credit, asset, amount, reason, category, referenceID); err != nil {
		return 0, err
	}
	if err := l.store.SaveWallet(txn, wallet); err != nil {
		return 0, err
	}
	return wallet.BalanceOf(asset), nil
}

// DebitTx 在调用方的事务内从账户扣款，余额不足时返回 ErrInsufficientFunds。
func (l *Ledger) DebitTx(txn *badger.Txn, accountID string, asset models.Asset, amount float64, reason, category, referenceID string) (float64, error) {
	wallet, err := l.store.Wallet(txn, accountID)
	if err != nil {
		return 0, err
	}
	if wallet == nil {
		return 0, fmt.Errorf("%w: %s", models.ErrWalletNotFound, accountID)
	}
	if err := l.applyEntry(wallet, models.Debit, asset, amount, reason, category, referenceID); err != nil {
		return 0, err
	}
	if err := l.store.SaveWallet(txn, wallet); err != nil {
		return 0, err
	}
	return wallet.BalanceOf(asset), nil
}

// Credit 独立事务版本的入账
func (l *Ledger) Credit(accountID string, asset models.Asset, amount float64, reason, category, referenceID string) (float64, error) {
	var balance float64
	err := l.store.Update(func(txn *badger.Txn) error {
		var err error
		balance, err = l.CreditTx(txn, accountID, asset, amount, reason, category, referenceID)
		return err
	})
	return balance, err
}

// Debit 独立事务版本的扣款
func (l *Ledger) Debit(accountID string, asset models.Asset, amount float64, reason, category, referenceID string) (float64, error) {
	var balance float64
	err := l.store.Update(func(txn *badger.Txn) error {
		var err error
		balance, err = l.DebitTx(txn, accountID, asset, amount, reason, category, referenceID)
		return err
	})
	return balance, err
}

// Wallet 返回账户钱包的快照
func (l *Ledger) Wallet(accountID string) (*models.Wallet, error) {
	var wallet *models.Wallet
	err := l.store.View(func(txn *badger.Txn) error {
		var err error
		wallet, err = l.store.Wallet(txn, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrWalletNotFound, accountID)
	}
	return wallet, nil
}

// History 返回账户的完整流水（按追加顺序）
func (l *Ledger) History(accountID string) ([]models.LedgerEntry, error) {
	wallet, err := l.Wallet(accountID)
	if err != nil {
		return nil, err
	}
	return wallet.History, nil
}

// MultiplyStakedLiquidTx 对所有活期质押余额为正的账户做批量乘法。
// 这是 InterestEngine 专用的集合级原子变更: 整个集合在一个事务里
// 要么全部生效要么全不生效，避免了逐户读改写与并发交易之间的丢失更新，
// 也消除了按账户顺序取整带来的结果差异。不写流水，利息是结构性利率。
// 返回受影响的账户数与乘法后的活期质押总额。
func (l *Ledger) MultiplyStakedLiquidTx(txn *badger.Txn, factor float64) (int, float64, error) {
	if factor <= 0 {
		return 0, 0, fmt.Errorf("%w: factor %.6f", models.ErrInvalidAmount, factor)
	}

	count := 0
	total := 0.0
	ts := l.now()

	// 先收集再写入: badger 迭代器活动期间不允许写同一事务
	var dirty []*models.Wallet
	err := l.store.ForEachWallet(txn, func(wallet *models.Wallet) error {
		if wallet.BalanceStakedLiquid <= 0 {
			return nil
		}
		w := *wallet
		w.History = append([]models.LedgerEntry(nil), wallet.History...)
		w.BalanceStakedLiquid *= factor
		w.UpdatedAt = ts
		dirty = append(dirty, &w)
		count++
		total += w.BalanceStakedLiquid
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	for _, wallet := range dirty {
		if err := l.store.SaveWallet(txn, wallet); err != nil {
			return 0, 0, err
		}
	}
	return count, total, nil
}
