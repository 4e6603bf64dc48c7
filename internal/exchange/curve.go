package exchange

import "math"

// 离散几何联合曲线: price(s) = base * multiplier^s。
// 每铸造一枚代币，边际价格上升一个固定倍数；
// 供给计数器与价格函数之间不允许出现任何漂移。

// spotPrice 返回供给为 s 时的边际单价
func spotPrice(base, multiplier float64, supply int64) float64 {
	return base * math.Pow(multiplier, float64(supply))
}

// buyCost 返回从供给 s 起买入 delta 枚的总成本（几何级数闭式求和）:
// cost = base * multiplier^s * (multiplier^delta - 1) / (multiplier - 1)
func buyCost(base, multiplier float64, supply, delta int64) float64 {
	if multiplier == 1 {
		return base * float64(delta)
	}
	return spotPrice(base, multiplier, supply) *
		(math.Pow(multiplier, float64(delta)) - 1) / (multiplier - 1)
}

// sellGross 返回把供给从 s 降到 s-delta 时沿曲线回收的总额，
// 等于当初从 s-delta 爬到 s 所付出的成本。
func sellGross(base, multiplier float64, supply, delta int64) float64 {
	return buyCost(base, multiplier, supply-delta, delta)
}

// priceImpact 返回 delta 枚交易对边际价格的相对冲击: multiplier^delta - 1
func priceImpact(multiplier float64, delta int64) float64 {
	return math.Pow(multiplier, float64(delta)) - 1
}
