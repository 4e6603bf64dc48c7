package models

import "errors"

// 错误分类：用户可见的拒绝原因使用哨兵错误，调用方用 errors.Is 判断。
// 存储层失败以包装错误向上传播，绝不吞掉，余额变更静默失败即是账本损坏。
var (
	// ErrInsufficientFunds 表示扣款会使目标余额变为负数
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrMarketClosed 表示市场被管理员关闭，交易被拒绝
	ErrMarketClosed = errors.New("market closed")

	// ErrInvalidAmount 表示数量非正数，或卖出量超过流通供给
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNoActiveSeason 表示赛季尚未创世，每日结算任务拒绝自行创建
	ErrNoActiveSeason = errors.New("no active season")

	// ErrBondNotActive 表示债券已被赎回或提前终止
	ErrBondNotActive = errors.New("bond not active")

	// ErrBondNotOwned 表示操作者不是债券持有人
	ErrBondNotOwned = errors.New("bond not owned by account")

	// ErrBondNotMatured 表示债券未到期，正常赎回被拒绝（提前退出走 BreakBond）
	ErrBondNotMatured = errors.New("bond not matured")

	// ErrWalletNotFound 表示账户钱包不存在
	ErrWalletNotFound = errors.New("wallet not found")
)
