package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glue-economy-go/internal/models"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewBadgerStore(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestSeasonRoundTrip verifies save/load of the season record and that a
// missing season comes back as (nil, nil).
func TestSeasonRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Update(func(txn *badger.Txn) error {
		missing, err := store.Season(txn, 1)
		require.NoError(t, err)
		require.Nil(t, missing)

		return store.SaveSeason(txn, &models.SeasonState{
			SeasonID:              1,
			SeasonStart:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			LastProcessedDay:      4,
			GlueSupplyCirculating: 42,
			MarketOpen:            true,
		})
	}))

	require.NoError(t, store.View(func(txn *badger.Txn) error {
		state, err := store.Season(txn, 1)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, 4, state.LastProcessedDay)
		assert.Equal(t, int64(42), state.GlueSupplyCirculating)
		assert.True(t, state.MarketOpen)
		return nil
	}))
}

// TestWalletRoundTrip verifies wallet persistence including history.
func TestWalletRoundTrip(t *testing.T) {
	store := newTestStore(t)

	wallet := &models.Wallet{
		AccountID:    "alice",
		BalanceCoins: 123.45,
		History: []models.LedgerEntry{
			{ID: "e1", Direction: models.Credit, Asset: models.AssetCoins, Amount: 123.45},
		},
	}
	require.NoError(t, store.Update(func(txn *badger.Txn) error {
		return store.SaveWallet(txn, wallet)
	}))

	require.NoError(t, store.View(func(txn *badger.Txn) error {
		loaded, err := store.Wallet(txn, "alice")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.InDelta(t, 123.45, loaded.BalanceCoins, 1e-9)
		require.Len(t, loaded.History, 1)
		assert.Equal(t, "e1", loaded.History[0].ID)

		ghost, err := store.Wallet(txn, "ghost")
		require.NoError(t, err)
		assert.Nil(t, ghost)
		return nil
	}))
}

// TestForEachWallet verifies iteration sees every stored wallet exactly once.
func TestForEachWallet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Update(func(txn *badger.Txn) error {
		for _, id := range []string{"alice", "bob", "carol"} {
			if err := store.SaveWallet(txn, &models.Wallet{AccountID: id}); err != nil {
				return err
			}
		}
		return nil
	}))

	seen := map[string]int{}
	require.NoError(t, store.View(func(txn *badger.Txn) error {
		return store.ForEachWallet(txn, func(w *models.Wallet) error {
			seen[w.AccountID]++
			return nil
		})
	}))
	assert.Equal(t, map[string]int{"alice": 1, "bob": 1, "carol": 1}, seen)
}

// TestTradeOrderAndImmutability verifies the chronological key order of
// the trade log and that a trade record can never be overwritten.
func TestTradeOrderAndImmutability(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Written out of order on purpose.
	stamps := []time.Duration{2 * time.Second, 0, time.Second}
	require.NoError(t, store.Update(func(txn *badger.Txn) error {
		for i, d := range stamps {
			trade := &models.Trade{ID: string(rune('a' + i)), Timestamp: base.Add(d)}
			if err := store.AppendTrade(txn, trade); err != nil {
				return err
			}
		}
		return nil
	}))

	var order []time.Time
	require.NoError(t, store.View(func(txn *badger.Txn) error {
		return store.ForEachTrade(txn, func(trade *models.Trade) error {
			order = append(order, trade.Timestamp)
			return nil
		})
	}))
	require.Len(t, order, 3)
	assert.True(t, order[0].Before(order[1]) && order[1].Before(order[2]),
		"iteration must be chronological")

	// Same timestamp again -> refused.
	err := store.Update(func(txn *badger.Txn) error {
		return store.AppendTrade(txn, &models.Trade{ID: "dup", Timestamp: base})
	})
	assert.Error(t, err)
}

// TestUpdateIsAtomic verifies a failing closure rolls back every write
// it made.
func TestUpdateIsAtomic(t *testing.T) {
	store := newTestStore(t)

	err := store.Update(func(txn *badger.Txn) error {
		if err := store.SaveWallet(txn, &models.Wallet{AccountID: "alice", BalanceCoins: 10}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	require.NoError(t, store.View(func(txn *badger.Txn) error {
		wallet, err := store.Wallet(txn, "alice")
		require.NoError(t, err)
		assert.Nil(t, wallet, "rolled-back write must not be visible")
		return nil
	}))
}
