package emission

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"glue-economy-go/internal/logger"
	"glue-economy-go/internal/models"
)

func TestMain(m *testing.M) {
	logger.Quiet()
	os.Exit(m.Run())
}

func seasonConfig() models.SeasonConfig {
	return models.SeasonConfig{
		ID:                1,
		LengthDays:        90,
		ReferralA:         1000,
		ReferralK:         0.05,
		CashbackBase:      100,
		MaxReferralReward: 50,
		MinReferralReward: 5,
	}
}

// TestReferralPoolDayZero verifies that the pool starts at floor(A).
func TestReferralPoolDayZero(t *testing.T) {
	cfg := seasonConfig()
	assert.Equal(t, math.Floor(cfg.ReferralA), ReferralPool(0, cfg))
}

// TestReferralPoolDecays verifies the exponential decay is monotonically
// non-increasing over the whole season.
func TestReferralPoolDecays(t *testing.T) {
	cfg := seasonConfig()
	prev := ReferralPool(0, cfg)
	for day := 1; day <= cfg.LengthDays; day++ {
		cur := ReferralPool(day, cfg)
		assert.LessOrEqual(t, cur, prev, "pool must not grow on day %d", day)
		prev = cur
	}
}

// TestPoolsOutsideSeason verifies both pools are zero before day 0 and
// after the season ends.
func TestPoolsOutsideSeason(t *testing.T) {
	cfg := seasonConfig()
	assert.Zero(t, ReferralPool(-1, cfg))
	assert.Zero(t, ReferralPool(cfg.LengthDays+1, cfg))
	assert.Zero(t, CashbackPool(-1, cfg))
	assert.Zero(t, CashbackPool(cfg.LengthDays+1, cfg))
}

// TestCashbackPoolGrows verifies the power curve B*(day+1)^1.5 and that
// it is increasing.
func TestCashbackPoolGrows(t *testing.T) {
	cfg := seasonConfig()
	assert.Equal(t, math.Floor(cfg.CashbackBase), CashbackPool(0, cfg))
	assert.Equal(t, math.Floor(cfg.CashbackBase*math.Pow(4, 1.5)), CashbackPool(3, cfg))

	prev := CashbackPool(0, cfg)
	for day := 1; day <= cfg.LengthDays; day++ {
		cur := CashbackPool(day, cfg)
		assert.GreaterOrEqual(t, cur, prev, "pool must not shrink on day %d", day)
		prev = cur
	}
}

// TestUnitaryReferralReward verifies the reward starts at the maximum,
// decays with the pool and never drops below the configured floor.
func TestUnitaryReferralReward(t *testing.T) {
	cfg := seasonConfig()

	assert.Equal(t, cfg.MaxReferralReward, UnitaryReferralReward(0, cfg))

	prev := UnitaryReferralReward(0, cfg)
	for day := 1; day <= cfg.LengthDays; day++ {
		cur := UnitaryReferralReward(day, cfg)
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, cfg.MinReferralReward)
		prev = cur
	}

	// Deep into the decay the floor takes over.
	assert.Equal(t, cfg.MinReferralReward, UnitaryReferralReward(cfg.LengthDays, cfg))
}

// TestInvalidParamsFailSafe verifies that broken curve constants yield
// zero pools instead of panicking.
func TestInvalidParamsFailSafe(t *testing.T) {
	var cfg models.SeasonConfig // all zero

	assert.Zero(t, ReferralPool(0, cfg))
	assert.Zero(t, CashbackPool(0, cfg))
	// With a dead pool the reward collapses to the configured floor (zero here).
	assert.Zero(t, UnitaryReferralReward(0, cfg))
}
