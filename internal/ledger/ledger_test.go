package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glue-economy-go/internal/logger"
	"glue-economy-go/internal/models"
	"glue-economy-go/internal/persistence"
)

func TestMain(m *testing.M) {
	logger.Quiet()
	os.Exit(m.Run())
}

func newTestLedger(t *testing.T) (*Ledger, persistence.Store) {
	t.Helper()
	store, err := persistence.NewBadgerStore(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewLedger(store), store
}

// TestCreditCreatesWallet verifies that crediting an unknown account
// creates its wallet on the fly.
func TestCreditCreatesWallet(t *testing.T) {
	lg, _ := newTestLedger(t)

	balance, err := lg.Credit("alice", models.AssetCoins, 100, "seed", models.CategorySystem, "")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, balance, 1e-9)

	wallet, err := lg.Wallet("alice")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, wallet.BalanceCoins, 1e-9)
	require.Len(t, wallet.History, 1)
	assert.Equal(t, models.Credit, wallet.History[0].Direction)
}

// TestDebitUnknownWallet verifies debits never create wallets.
func TestDebitUnknownWallet(t *testing.T) {
	lg, _ := newTestLedger(t)

	_, err := lg.Debit("ghost", models.AssetCoins, 1, "test", models.CategorySystem, "")
	assert.ErrorIs(t, err, models.ErrWalletNotFound)
}

// TestDebitInsufficientFunds verifies the balance guard and that a
// rejected debit leaves the wallet untouched.
func TestDebitInsufficientFunds(t *testing.T) {
	lg, _ := newTestLedger(t)
	_, err := lg.Credit("alice", models.AssetCoins, 10, "seed", models.CategorySystem, "")
	require.NoError(t, err)

	_, err = lg.Debit("alice", models.AssetCoins, 10.01, "test", models.CategoryBank, "")
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	wallet, err := lg.Wallet("alice")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, wallet.BalanceCoins, 1e-9)
	assert.Len(t, wallet.History, 1, "the rejected debit must not leave an entry")
}

// TestInvalidAmounts verifies zero and negative amounts are rejected on
// both primitives.
func TestInvalidAmounts(t *testing.T) {
	lg, _ := newTestLedger(t)

	_, err := lg.Credit("alice", models.AssetCoins, 0, "test", models.CategorySystem, "")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
	_, err = lg.Credit("alice", models.AssetCoins, -5, "test", models.CategorySystem, "")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

// TestAssetsAreIndependent verifies entries only touch the asset they
// name.
func TestAssetsAreIndependent(t *testing.T) {
	lg, _ := newTestLedger(t)

	_, err := lg.Credit("alice", models.AssetCoins, 100, "seed", models.CategorySystem, "")
	require.NoError(t, err)
	_, err = lg.Credit("alice", models.AssetGlue, 3, "seed", models.CategorySystem, "")
	require.NoError(t, err)

	wallet, err := lg.Wallet("alice")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, wallet.BalanceCoins, 1e-9)
	assert.InDelta(t, 3.0, wallet.BalanceGlue, 1e-9)
	assert.Zero(t, wallet.BalanceStakedLiquid)
}

// TestHistoryConservation verifies the ledger invariant: per asset, the
// sum of credits minus debits equals the live balance.
func TestHistoryConservation(t *testing.T) {
	lg, _ := newTestLedger(t)

	ops := []struct {
		credit bool
		amount float64
	}{
		{true, 100}, {false, 30}, {true, 12.5}, {false, 0.5}, {true, 7},
	}
	for _, op := range ops {
		var err error
		if op.credit {
			_, err = lg.Credit("alice", models.AssetCoins, op.amount, "op", models.CategorySystem, "")
		} else {
			_, err = lg.Debit("alice", models.AssetCoins, op.amount, "op", models.CategorySystem, "")
		}
		require.NoError(t, err)
	}

	wallet, err := lg.Wallet("alice")
	require.NoError(t, err)

	sum := 0.0
	for _, entry := range wallet.History {
		if entry.Direction == models.Credit {
			sum += entry.Amount
		} else {
			sum -= entry.Amount
		}
	}
	assert.InDelta(t, sum, wallet.BalanceCoins, 1e-9)
}

// TestMultiplyStakedLiquid verifies the bulk compounding primitive:
// every positive staked balance is scaled in one transaction, wallets
// without stake are untouched and no history entries are written.
func TestMultiplyStakedLiquid(t *testing.T) {
	lg, store := newTestLedger(t)

	_, err := lg.Credit("alice", models.AssetStakedLiquid, 100, "stake", models.CategoryBank, "")
	require.NoError(t, err)
	_, err = lg.Credit("bob", models.AssetStakedLiquid, 200, "stake", models.CategoryBank, "")
	require.NoError(t, err)
	_, err = lg.Credit("carol", models.AssetCoins, 50, "seed", models.CategorySystem, "")
	require.NoError(t, err)

	var count int
	var total float64
	require.NoError(t, store.Update(func(txn *badger.Txn) error {
		var err error
		count, total, err = lg.MultiplyStakedLiquidTx(txn, 1.01)
		return err
	}))
	assert.Equal(t, 2, count)
	assert.InDelta(t, 303.0, total, 1e-9)

	alice, err := lg.Wallet("alice")
	require.NoError(t, err)
	assert.InDelta(t, 101.0, alice.BalanceStakedLiquid, 1e-9)
	assert.Len(t, alice.History, 1, "compounding must not append history entries")

	carol, err := lg.Wallet("carol")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, carol.BalanceCoins, 1e-9)
}

// TestMultiplyRejectsNonPositiveFactor guards the bulk primitive against
// factors that would wipe balances.
func TestMultiplyRejectsNonPositiveFactor(t *testing.T) {
	lg, store := newTestLedger(t)

	err := store.Update(func(txn *badger.Txn) error {
		_, _, err := lg.MultiplyStakedLiquidTx(txn, 0)
		return err
	})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

// TestFixedClockIDs verifies entry IDs derive from the injected clock.
func TestFixedClockIDs(t *testing.T) {
	lg, _ := newTestLedger(t)
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lg.SetClock(func() time.Time { return fixed })

	_, err := lg.Credit("alice", models.AssetCoins, 1, "seed", models.CategorySystem, "")
	require.NoError(t, err)

	wallet, err := lg.Wallet("alice")
	require.NoError(t, err)
	require.Len(t, wallet.History, 1)
	assert.Equal(t, newEntryID(fixed), wallet.History[0].ID)
	assert.Equal(t, fixed, wallet.History[0].Timestamp)
}
