package emission

import (
	"math"

	"glue-economy-go/internal/logger"
	"glue-economy-go/internal/models"
)

// 发行曲线: day -> 当日奖励池大小与单笔奖励。
// 纯函数，无状态无IO，所有赛季常量通过配置快照传入。
// 常量缺失或非法时返回 0 并记录配置错误，而不是 panic:
// 池子大小是建议性数值，归零只会让奖励停发，不会损坏账本。

// validParams 校验曲线常量是否可用
func validParams(cfg models.SeasonConfig) bool {
	return cfg.LengthDays > 0 && cfg.ReferralA > 0 && cfg.ReferralK > 0 && cfg.CashbackBase > 0
}

// ReferralPool 返回第 day 天的推荐奖励池: floor(A * e^(-k*day))。
// 超过赛季长度后为 0。
func ReferralPool(day int, cfg models.SeasonConfig) float64 {
	if !validParams(cfg) {
		logger.S().Errorf("发行曲线常量非法 (A=%.2f k=%.4f length=%d)，推荐池按 0 处理",
			cfg.ReferralA, cfg.ReferralK, cfg.LengthDays)
		return 0
	}
	if day < 0 || day > cfg.LengthDays {
		return 0
	}
	return math.Floor(cfg.ReferralA * math.Exp(-cfg.ReferralK*float64(day)))
}

// CashbackPool 返回第 day 天的返现奖励池: floor(B * (day+1)^1.5)。
// 超过赛季长度后为 0。
func CashbackPool(day int, cfg models.SeasonConfig) float64 {
	if !validParams(cfg) {
		logger.S().Errorf("发行曲线常量非法 (B=%.2f length=%d)，返现池按 0 处理",
			cfg.CashbackBase, cfg.LengthDays)
		return 0
	}
	if day < 0 || day > cfg.LengthDays {
		return 0
	}
	return math.Floor(cfg.CashbackBase * math.Pow(float64(day+1), 1.5))
}

// UnitaryReferralReward 返回第 day 天的单笔推荐奖励。
// 奖励随推荐池同步衰减，但不会低于配置的保底值，
// 防止浮点衰减在曲线尾部把奖励饿死到零。
func UnitaryReferralReward(day int, cfg models.SeasonConfig) float64 {
	dayOnePool := ReferralPool(0, cfg)
	decay := ReferralPool(day, cfg) / math.Max(dayOnePool, 1)

	reward := math.Floor(cfg.MaxReferralReward * decay)
	return math.Max(reward, cfg.MinReferralReward)
}
