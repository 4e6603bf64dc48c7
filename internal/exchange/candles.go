package exchange

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"

	"glue-economy-go/internal/models"
)

// K线聚合: 把不可变的交易记录按固定时间窗口合并成 OHLCV。
// 没有成交的窗口生成延续前收盘价的平K线 (open=high=low=close, volume=0)，
// 这样渲染出的序列没有空洞，这是刻意的连续性选择，不是数据缺口。

// supportedTimeframes 是图表支持的窗口宽度（分钟）
var supportedTimeframes = map[int]bool{1: true, 5: true, 15: true, 60: true}

// GetChartData 返回按时间排序的K线序列
func (e *Exchange) GetChartData(timeframeMinutes int) ([]models.Candle, error) {
	if !supportedTimeframes[timeframeMinutes] {
		return nil, fmt.Errorf("%w: timeframe %d minutes", models.ErrInvalidAmount, timeframeMinutes)
	}
	window := time.Duration(timeframeMinutes) * time.Minute

	var trades []models.Trade
	err := e.store.View(func(txn *badger.Txn) error {
		return e.store.ForEachTrade(txn, func(t *models.Trade) error {
			trades = append(trades, *t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return aggregateCandles(trades, window), nil
}

// aggregateCandles 把按时间排序的交易序列折叠成连续的K线序列
func aggregateCandles(trades []models.Trade, window time.Duration) []models.Candle {
	if len(trades) == 0 {
		return nil
	}

	first := trades[0].Timestamp.Truncate(window)
	last := trades[len(trades)-1].Timestamp.Truncate(window)

	var candles []models.Candle
	idx := 0
	prevClose := trades[0].PriceOpen

	for bucket := first; !bucket.After(last); bucket = bucket.Add(window) {
		end := bucket.Add(window)

		var inWindow []models.Trade
		for idx < len(trades) && trades[idx].Timestamp.Before(end) {
			inWindow = append(inWindow, trades[idx])
			idx++
		}

		if len(inWindow) == 0 {
			// 无成交窗口: 延续前收盘价的平K线
			candles = append(candles, models.Candle{
				Time: bucket, Open: prevClose, High: prevClose, Low: prevClose, Close: prevClose,
			})
			continue
		}

		candle := models.Candle{
			Time:  bucket,
			Open:  inWindow[0].PriceOpen,
			Close: inWindow[len(inWindow)-1].PriceClose,
			High:  inWindow[0].PriceHigh,
			Low:   inWindow[0].PriceLow,
		}
		for _, t := range inWindow {
			if t.PriceHigh > candle.High {
				candle.High = t.PriceHigh
			}
			if t.PriceLow < candle.Low {
				candle.Low = t.PriceLow
			}
			candle.Volume += t.AmountGlue
		}
		prevClose = candle.Close
		candles = append(candles, candle)
	}

	return candles
}
