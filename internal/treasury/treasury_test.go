package treasury

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glue-economy-go/internal/config"
	"glue-economy-go/internal/interest"
	"glue-economy-go/internal/ledger"
	"glue-economy-go/internal/logger"
	"glue-economy-go/internal/models"
	"glue-economy-go/internal/persistence"
)

func TestMain(m *testing.M) {
	logger.Quiet()
	os.Exit(m.Run())
}

var seasonStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	store    persistence.Store
	ledger   *ledger.Ledger
	treasury *Treasury
	cfg      *models.Config
	clock    time.Time
}

func testConfig() *models.Config {
	return &models.Config{
		Season: models.SeasonConfig{
			ID:                1,
			StartDate:         seasonStart.Format(time.RFC3339),
			LengthDays:        90,
			ReferralA:         1000,
			ReferralK:         0.05,
			CashbackBase:      100,
			MaxReferralReward: 50,
			MinReferralReward: 5,
			ReferralPoolCap:   100000,
			CashbackPoolCap:   500000,
		},
		Bank: models.BankConfig{
			LiquidAPRDaily: 0.01,
			LockedAPRDaily: 0.02,
		},
		Exchange: models.ExchangeConfig{
			BasePrice:         50,
			Multiplier:        1.05,
			MarketOpenOnStart: true,
		},
		Treasury: models.TreasuryConfig{
			TreasuryWallet:        "sys:treasury",
			CashbackReserveWallet: "sys:cashback-reserve",
		},
	}
}

func newTestEnv(t *testing.T, cfg *models.Config) *testEnv {
	t.Helper()

	store, err := persistence.NewBadgerStore(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	path := filepath.Join(t.TempDir(), "config.json")
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
	provider, err := config.NewProvider(path)
	require.NoError(t, err)

	lg := ledger.NewLedger(store)
	engine := interest.NewEngine(store, lg)
	tr := NewTreasury(store, lg, engine, provider)

	env := &testEnv{store: store, ledger: lg, treasury: tr, cfg: cfg, clock: seasonStart}
	tr.SetClock(func() time.Time { return env.clock })
	return env
}

// TestGenesis verifies the bootstrap: season record with the watermark
// parked at -1 and both system wallets funded with their caps.
func TestGenesis(t *testing.T) {
	env := newTestEnv(t, testConfig())

	state, err := env.treasury.Genesis()
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.SeasonID)
	assert.Equal(t, -1, state.LastProcessedDay)
	assert.True(t, state.MarketOpen)
	assert.InDelta(t, 50.0, state.GluePriceBase, 1e-9)

	wallet, err := env.ledger.Wallet("sys:treasury")
	require.NoError(t, err)
	assert.InDelta(t, 100000.0, wallet.BalanceCoins, 1e-9)

	reserve, err := env.ledger.Wallet("sys:cashback-reserve")
	require.NoError(t, err)
	assert.InDelta(t, 500000.0, reserve.BalanceCoins, 1e-9)

	// Bootstrapping twice is refused.
	_, err = env.treasury.Genesis()
	assert.Error(t, err)
}

// TestClosingRequiresGenesis verifies the closing never creates a season
// on its own.
func TestClosingRequiresGenesis(t *testing.T) {
	env := newTestEnv(t, testConfig())

	_, err := env.treasury.RunDailyClosing()
	assert.ErrorIs(t, err, models.ErrNoActiveSeason)
}

// TestClosingIdempotent verifies the watermark gate: closing the same day
// twice settles once, and the treasury wallet is debited exactly once.
func TestClosingIdempotent(t *testing.T) {
	env := newTestEnv(t, testConfig())
	_, err := env.treasury.Genesis()
	require.NoError(t, err)

	env.clock = seasonStart.Add(3*24*time.Hour + time.Hour) // day 3

	first, err := env.treasury.RunDailyClosing()
	require.NoError(t, err)
	assert.True(t, first.Settled)
	assert.Equal(t, 3, first.Day)

	second, err := env.treasury.RunDailyClosing()
	require.NoError(t, err)
	assert.False(t, second.Settled, "same-day rerun must be a no-op")

	expectedRef := math.Floor(1000 * math.Exp(-0.05*3))
	wallet, err := env.ledger.Wallet("sys:treasury")
	require.NoError(t, err)
	assert.InDelta(t, 100000.0-expectedRef, wallet.BalanceCoins, 1e-9,
		"emission must be debited exactly once")

	state, err := env.treasury.CurrentState()
	require.NoError(t, err)
	assert.Equal(t, 3, state.LastProcessedDay)
	assert.InDelta(t, expectedRef, state.ReferralPoolAvailable, 1e-9)
}

// TestClosingPoolSemantics verifies the referral pool resets each day
// while the cashback pool rolls unclaimed volume forward.
func TestClosingPoolSemantics(t *testing.T) {
	env := newTestEnv(t, testConfig())
	_, err := env.treasury.Genesis()
	require.NoError(t, err)

	env.clock = seasonStart.Add(time.Hour) // day 0
	res0, err := env.treasury.RunDailyClosing()
	require.NoError(t, err)
	require.True(t, res0.Settled)

	env.clock = seasonStart.Add(24*time.Hour + time.Hour) // day 1
	res1, err := env.treasury.RunDailyClosing()
	require.NoError(t, err)
	require.True(t, res1.Settled)

	state, err := env.treasury.CurrentState()
	require.NoError(t, err)

	// Referral pool holds only today's emission.
	assert.InDelta(t, res1.RefPool, state.ReferralPoolAvailable, 1e-9)
	// Cashback pool accumulated both days.
	assert.InDelta(t, res0.CashPool+res1.CashPool, state.CashbackPoolAvailable, 1e-9)
}

// TestClosingAppliesInterest verifies step 5 runs inside the closing:
// staked balances compound by the fixed daily rate, without new ledger
// history entries.
func TestClosingAppliesInterest(t *testing.T) {
	env := newTestEnv(t, testConfig())
	_, err := env.treasury.Genesis()
	require.NoError(t, err)

	_, err = env.ledger.Credit("alice", models.AssetStakedLiquid, 100, "stake", models.CategoryBank, "")
	require.NoError(t, err)

	env.clock = seasonStart.Add(time.Hour)
	res, err := env.treasury.RunDailyClosing()
	require.NoError(t, err)
	require.True(t, res.Settled)

	wallet, err := env.ledger.Wallet("alice")
	require.NoError(t, err)
	assert.InDelta(t, 101.0, wallet.BalanceStakedLiquid, 1e-9)
	assert.Len(t, wallet.History, 1, "interest must not write ledger entries")

	state, err := env.treasury.CurrentState()
	require.NoError(t, err)
	assert.InDelta(t, 0.01, state.LastAPRLiquid, 1e-9)
	assert.InDelta(t, 101.0, state.TotalStakedLiquid, 1e-9)
}

// TestClosingCatchesUpToLatestDay verifies that after downtime a single
// run settles the current day (pools are daily snapshots, not per-day
// replays).
func TestClosingCatchesUpToLatestDay(t *testing.T) {
	env := newTestEnv(t, testConfig())
	_, err := env.treasury.Genesis()
	require.NoError(t, err)

	env.clock = seasonStart.Add(10*24*time.Hour + time.Hour)
	res, err := env.treasury.RunDailyClosing()
	require.NoError(t, err)
	assert.True(t, res.Settled)
	assert.Equal(t, 10, res.Day)

	state, err := env.treasury.CurrentState()
	require.NoError(t, err)
	assert.Equal(t, 10, state.CurrentDay)
	assert.Equal(t, 10, state.LastProcessedDay)
}
