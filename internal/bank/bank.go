package bank

import (
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"glue-economy-go/internal/config"
	"glue-economy-go/internal/interest"
	"glue-economy-go/internal/ledger"
	"glue-economy-go/internal/logger"
	"glue-economy-go/internal/models"
	"glue-economy-go/internal/persistence"
)

const oneDay = 24 * time.Hour

// Bank 提供储蓄侧的全部操作：活期质押的存取、定期债券的买入/赎回/提前解约。
// 所有写操作都在单个事务内完成，余额变动一律走总账（ledger），
// Bank 本身不直接改钱包。
type Bank struct {
	store    persistence.Store
	ledger   *ledger.Ledger
	provider *config.Provider
	now      func() time.Time
}

func New(store persistence.Store, lg *ledger.Ledger, provider *config.Provider) *Bank {
	return &Bank{
		store:    store,
		ledger:   lg,
		provider: provider,
		now:      time.Now,
	}
}

// SetClock 仅测试使用
func (b *Bank) SetClock(now func() time.Time) {
	b.now = now
}

// DepositLiquid 把 Coins 转入活期质押仓位。本金当日起参与计息。
func (b *Bank) DepositLiquid(accountID string, amount float64) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}
	err := b.store.Update(func(txn *badger.Txn) error {
		if _, err := b.ledger.DebitTx(txn, accountID, models.AssetCoins, amount,
			"Liquid deposit", models.CategoryBank, ""); err != nil {
			return err
		}
		_, err := b.ledger.CreditTx(txn, accountID, models.AssetStakedLiquid, amount,
			"Liquid deposit", models.CategoryBank, "")
		return err
	})
	if err != nil {
		return err
	}
	logger.S().Infof("活期存入: account=%s amount=%.4f", accountID, amount)
	return nil
}

// WithdrawLiquid 把活期仓位（本金+已复利部分）转回 Coins，随时可取、无罚金。
func (b *Bank) WithdrawLiquid(accountID string, amount float64) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}
	err := b.store.Update(func(txn *badger.Txn) error {
		if _, err := b.ledger.DebitTx(txn, accountID, models.AssetStakedLiquid, amount,
			"Liquid withdrawal", models.CategoryBank, ""); err != nil {
			return err
		}
		_, err := b.ledger.CreditTx(txn, accountID, models.AssetCoins, amount,
			"Liquid withdrawal", models.CategoryBank, "")
		return err
	})
	if err != nil {
		return err
	}
	logger.S().Infof("活期取出: account=%s amount=%.4f", accountID, amount)
	return nil
}

// PurchaseBond 买入一张定期债券。termDays<=0 时采用配置的默认锁定期。
// 利率在买入瞬间冻结（动态利率模式下取当日结算出的锁定利率），
// 之后配置怎么改都不影响这张债券。
func (b *Bank) PurchaseBond(accountID string, amount float64, termDays int) (*models.LockedBond, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	cfg := b.provider.Snapshot()
	if termDays <= 0 {
		termDays = cfg.Bank.LockedPeriodDays
	}
	if termDays <= 0 {
		return nil, fmt.Errorf("invalid bond term: %d days", termDays)
	}

	var bond *models.LockedBond
	err := b.store.Update(func(txn *badger.Txn) error {
		state, err := b.store.Season(txn, cfg.Season.ID)
		if err != nil {
			return err
		}
		rate := cfg.Bank.LockedAPRDaily
		if state != nil {
			rate = interest.CurrentLockedRate(state, &cfg)
		}

		purchasedAt := b.now()
		bond = &models.LockedBond{
			ID:            uuid.NewString(),
			OwnerID:       accountID,
			Principal:     amount,
			CurrentValue:  amount,
			PurchasedAt:   purchasedAt,
			MaturityAt:    purchasedAt.Add(time.Duration(termDays) * oneDay),
			ContractedAPR: rate,
			Status:        models.BondActive,
		}

		if _, err := b.ledger.DebitTx(txn, accountID, models.AssetCoins, amount,
			fmt.Sprintf("Bond purchase (%d days)", termDays), models.CategoryInvest, bond.ID); err != nil {
			return err
		}
		return b.store.SaveBond(txn, bond)
	})
	if err != nil {
		return nil, err
	}
	logger.S().Infof("债券买入: account=%s bond=%s principal=%.4f term=%dd apr=%.6f",
		accountID, bond.ID, amount, termDays, bond.ContractedAPR)
	return bond, nil
}

// RedeemBond 到期赎回：把 CurrentValue 全额转回 Coins。
// 未到期调用会被拒绝，提前退出必须走 BreakBond。
func (b *Bank) RedeemBond(accountID, bondID string) (float64, error) {
	var payout float64
	err := b.store.Update(func(txn *badger.Txn) error {
		bond, err := b.loadActiveBond(txn, accountID, bondID)
		if err != nil {
			return err
		}
		if b.now().Before(bond.MaturityAt) {
			return models.ErrBondNotMatured
		}

		payout = bond.CurrentValue
		if _, err := b.ledger.CreditTx(txn, accountID, models.AssetCoins, payout,
			"Bond redemption at maturity", models.CategoryInvest, bond.ID); err != nil {
			return err
		}
		bond.Status = models.BondRedeemed
		return b.store.SaveBond(txn, bond)
	})
	if err != nil {
		return 0, err
	}
	logger.S().Infof("债券赎回: account=%s bond=%s payout=%.4f", accountID, bondID, payout)
	return payout, nil
}

// BreakBond 提前解约。罚金率随剩余天数线性衰减:
//
//	rate = PenaltyMin + (PenaltyMax-PenaltyMin) * 剩余天数/总期限
//
// 罚金对半拆分：一半销毁（累入 total_burned），一半记为系统费用。
// 已到期的债券直接按正常赎回处理，不收罚金。
func (b *Bank) BreakBond(accountID, bondID string) (float64, error) {
	cfg := b.provider.Snapshot()

	var payout, penalty float64
	err := b.store.Update(func(txn *badger.Txn) error {
		bond, err := b.loadActiveBond(txn, accountID, bondID)
		if err != nil {
			return err
		}

		now := b.now()
		if !now.Before(bond.MaturityAt) {
			// 到期后再解约等价于赎回，不收罚金
			payout = bond.CurrentValue
			penalty = 0
			if _, err := b.ledger.CreditTx(txn, accountID, models.AssetCoins, payout,
				"Bond redemption at maturity", models.CategoryInvest, bond.ID); err != nil {
				return err
			}
			bond.Status = models.BondRedeemed
			return b.store.SaveBond(txn, bond)
		}

		termDays := bond.MaturityAt.Sub(bond.PurchasedAt).Hours() / 24
		daysRemaining := bond.MaturityAt.Sub(now).Hours() / 24
		if termDays <= 0 {
			termDays = 1
		}
		rate := cfg.Bank.PenaltyMin + (cfg.Bank.PenaltyMax-cfg.Bank.PenaltyMin)*(daysRemaining/termDays)

		penalty = bond.CurrentValue * rate
		payout = bond.CurrentValue - penalty
		if payout < 0 {
			payout = 0
		}

		if _, err := b.ledger.CreditTx(txn, accountID, models.AssetCoins, payout,
			fmt.Sprintf("Bond broken early (penalty %.2f%%)", rate*100), models.CategoryInvest, bond.ID); err != nil {
			return err
		}

		state, err := b.store.Season(txn, cfg.Season.ID)
		if err != nil {
			return err
		}
		if state != nil {
			state.TotalBurned += penalty / 2
			state.TotalFeesCollected += penalty / 2
			if err := b.store.SaveSeason(txn, state); err != nil {
				return err
			}
		}

		bond.Status = models.BondBroken
		return b.store.SaveBond(txn, bond)
	})
	if err != nil {
		return 0, err
	}
	logger.S().Infof("债券解约: account=%s bond=%s payout=%.4f penalty=%.4f",
		accountID, bondID, payout, penalty)
	return payout, nil
}

// ListBonds 返回该账户的全部债券，按买入时间排序。
func (b *Bank) ListBonds(accountID string) ([]models.LockedBond, error) {
	var bonds []models.LockedBond
	err := b.store.View(func(txn *badger.Txn) error {
		return b.store.ForEachBond(txn, func(bond *models.LockedBond) error {
			if bond.OwnerID == accountID {
				bonds = append(bonds, *bond)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(bonds, func(i, j int) bool {
		return bonds[i].PurchasedAt.Before(bonds[j].PurchasedAt)
	})
	return bonds, nil
}

func (b *Bank) loadActiveBond(txn *badger.Txn, accountID, bondID string) (*models.LockedBond, error) {
	bond, err := b.store.Bond(txn, bondID)
	if err != nil {
		return nil, err
	}
	if bond == nil {
		return nil, models.ErrBondNotOwned
	}
	if bond.OwnerID != accountID {
		return nil, models.ErrBondNotOwned
	}
	if bond.Status != models.BondActive {
		return nil, models.ErrBondNotActive
	}
	return bond, nil
}
