package reporter

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"glue-economy-go/internal/models"
	"glue-economy-go/internal/treasury"
)

// Reporter 把经济系统的运行状态渲染成人类可读的终端报表。
// 只读，不碰数据库事务之外的任何状态。
type Reporter struct {
	out io.Writer
}

func New() *Reporter {
	return &Reporter{out: os.Stdout}
}

// SetOutput 仅测试使用
func (r *Reporter) SetOutput(w io.Writer) {
	r.out = w
}

// SeasonReport 打印当前赛季的全量快照：天数、奖池、供应量、现价与累计销毁。
func (r *Reporter) SeasonReport(state *models.SeasonState, spot float64) {
	t := r.newTable()
	t.SetTitle(fmt.Sprintf("Season %d - Day %d", state.SeasonID, state.CurrentDay))
	t.AppendHeader(table.Row{"指标", "数值"})
	t.AppendRows([]table.Row{
		{"赛季开始", state.SeasonStart.Format("2006-01-02")},
		{"已结算至 (天)", state.LastProcessedDay},
		{"推荐奖池", fmt.Sprintf("%.2f", state.ReferralPoolAvailable)},
		{"返利奖池", fmt.Sprintf("%.2f", state.CashbackPoolAvailable)},
		{"单笔推荐奖励", fmt.Sprintf("%.2f", state.CurrentReferralReward)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Glue 流通量", state.GlueSupplyCirculating},
		{"Glue 现价", fmt.Sprintf("%.4f", spot)},
		{"市场状态", marketLabel(state.MarketOpen)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"活期质押总量", fmt.Sprintf("%.2f", state.TotalStakedLiquid)},
		{"定期锁仓总量", fmt.Sprintf("%.2f", state.TotalStakedLocked)},
		{"活期日利率", fmt.Sprintf("%.4f%%", state.LastAPRLiquid*100)},
		{"锁定日利率", fmt.Sprintf("%.4f%%", state.LastAPRLocked*100)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"累计销毁", fmt.Sprintf("%.2f", state.TotalBurned)},
		{"累计费用", fmt.Sprintf("%.2f", state.TotalFeesCollected)},
	})
	t.Render()
}

// ClosingReport 打印一次日结的结果摘要。
func (r *Reporter) ClosingReport(result treasury.ClosingResult) {
	t := r.newTable()
	t.SetTitle(fmt.Sprintf("Daily Closing - Day %d", result.Day))
	t.AppendHeader(table.Row{"指标", "数值"})
	t.AppendRows([]table.Row{
		{"是否执行结算", yesNo(result.Settled)},
		{"推荐奖池注入", fmt.Sprintf("%.2f", result.RefPool)},
		{"返利奖池注入", fmt.Sprintf("%.2f", result.CashPool)},
		{"单笔推荐奖励", fmt.Sprintf("%.2f", result.UnitReward)},
	})
	t.Render()
}

// WalletReport 打印单个账户的各资产余额。
func (r *Reporter) WalletReport(wallet *models.Wallet) {
	t := r.newTable()
	t.SetTitle(fmt.Sprintf("Wallet %s", wallet.AccountID))
	t.AppendHeader(table.Row{"资产", "余额"})
	t.AppendRows([]table.Row{
		{"Coins", fmt.Sprintf("%.4f", wallet.BalanceOf(models.AssetCoins))},
		{"Glue", fmt.Sprintf("%.4f", wallet.BalanceOf(models.AssetGlue))},
		{"活期质押", fmt.Sprintf("%.4f", wallet.BalanceOf(models.AssetStakedLiquid))},
	})
	t.Render()
}

// BondsReport 打印账户的债券列表。
func (r *Reporter) BondsReport(accountID string, bonds []models.LockedBond) {
	t := r.newTable()
	t.SetTitle(fmt.Sprintf("Bonds - %s", accountID))
	t.AppendHeader(table.Row{"ID", "本金", "现值", "日利率", "到期日", "状态"})
	for _, bond := range bonds {
		t.AppendRow(table.Row{
			shortID(bond.ID),
			fmt.Sprintf("%.2f", bond.Principal),
			fmt.Sprintf("%.2f", bond.CurrentValue),
			fmt.Sprintf("%.4f%%", bond.ContractedAPR*100),
			bond.MaturityAt.Format("2006-01-02"),
			string(bond.Status),
		})
	}
	t.Render()
}

// CandleReport 打印指定周期的K线，最多取末尾 limit 根。
func (r *Reporter) CandleReport(timeframe int, candles []models.Candle, limit int) {
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	t := r.newTable()
	t.SetTitle(fmt.Sprintf("Glue/Coins %dm", timeframe))
	t.AppendHeader(table.Row{"时间", "开", "高", "低", "收", "量"})
	for _, c := range candles {
		t.AppendRow(table.Row{
			c.Time.Format("01-02 15:04"),
			fmt.Sprintf("%.4f", c.Open),
			fmt.Sprintf("%.4f", c.High),
			fmt.Sprintf("%.4f", c.Low),
			fmt.Sprintf("%.4f", c.Close),
			c.Volume,
		})
	}
	t.Render()
}

// QuoteReport 打印一次询价结果。
func (r *Reporter) QuoteReport(quote *models.Quote) {
	t := r.newTable()
	t.SetTitle(fmt.Sprintf("Quote - %s %d Glue", quote.Side, quote.Amount))
	t.AppendHeader(table.Row{"指标", "数值"})
	t.AppendRows([]table.Row{
		{"总额 (Coins)", fmt.Sprintf("%.4f", quote.TotalCoins)},
		{"起始单价", fmt.Sprintf("%.4f", quote.PriceStart)},
		{"终点单价", fmt.Sprintf("%.4f", quote.PriceEnd)},
		{"价格冲击", fmt.Sprintf("%.2f%%", quote.PriceImpact*100)},
	})
	t.Render()
}

func (r *Reporter) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	return t
}

// shortID 截断 UUID 方便表格展示
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func marketLabel(open bool) string {
	if open {
		return "OPEN"
	}
	return "CLOSED"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
