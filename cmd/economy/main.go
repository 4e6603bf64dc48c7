package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"glue-economy-go/internal/bank"
	"glue-economy-go/internal/config"
	"glue-economy-go/internal/exchange"
	"glue-economy-go/internal/interest"
	"glue-economy-go/internal/ledger"
	"glue-economy-go/internal/logger"
	"glue-economy-go/internal/models"
	"glue-economy-go/internal/persistence"
	"glue-economy-go/internal/reporter"
	"glue-economy-go/internal/scheduler"
	"glue-economy-go/internal/treasury"
)

// economy 把所有组件装配起来的容器，按模式取用
type economy struct {
	provider *config.Provider
	store    persistence.Store
	ledger   *ledger.Ledger
	interest *interest.Engine
	treasury *treasury.Treasury
	exchange *exchange.Exchange
	bank     *bank.Bank
	reporter *reporter.Reporter
}

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "serve", "running mode: serve, genesis, close, report or quote")
	account := flag.String("account", "", "account ID for the report mode")
	chart := flag.Int("chart", 0, "append a candle chart to the report (timeframe in minutes: 1, 5, 15 or 60)")
	side := flag.String("side", "buy", "quote side: buy or sell")
	amount := flag.Int64("amount", 1, "quote amount in GLUE")
	flag.Parse()

	// --- 初始化日志 (提前) ---
	// 加载配置前就可能需要记日志，先用默认配置起一个临时logger
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	provider, err := config.NewProvider(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}
	cfg := provider.Snapshot()

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	// --- 装配组件 ---
	store, err := persistence.NewBadgerStore(cfg.DBPath)
	if err != nil {
		logger.S().Fatalf("无法打开数据库 %s: %v", cfg.DBPath, err)
	}
	defer store.Close()

	lg := ledger.NewLedger(store)
	engine := interest.NewEngine(store, lg)
	eco := &economy{
		provider: provider,
		store:    store,
		ledger:   lg,
		interest: engine,
		treasury: treasury.NewTreasury(store, lg, engine, provider),
		exchange: exchange.NewExchange(store, lg, provider),
		bank:     bank.New(store, lg, provider),
		reporter: reporter.New(),
	}

	// --- 根据模式执行 ---
	switch *mode {
	case "serve":
		runServeMode(eco, &cfg)
	case "genesis":
		runGenesisMode(eco)
	case "close":
		runCloseMode(eco)
	case "report":
		runReportMode(eco, *account, *chart)
	case "quote":
		runQuoteMode(eco, *side, *amount)
	default:
		logger.S().Fatalf("未知的运行模式: %s。请选择 'serve'、'genesis'、'close'、'report' 或 'quote'。", *mode)
	}
}

// runServeMode 常驻运行：注册定时任务并等待退出信号
func runServeMode(eco *economy, cfg *models.Config) {
	logger.S().Info("--- 启动常驻模式 ---")

	closingSpec := cfg.Scheduler.ClosingSpec
	if closingSpec == "" {
		// 结算幂等，高频触发无害，宁可频繁也不要漏天
		closingSpec = "*/10 * * * *"
	}

	sched := scheduler.NewScheduler(eco.treasury, eco.provider, eco.reporter)
	if err := sched.RegisterAll(closingSpec, cfg.Scheduler.ConfigReloadSpec); err != nil {
		logger.S().Fatalf("注册定时任务失败: %v", err)
	}

	// 启动时先补跑一次结算，停机期间漏掉的天数在这里追上。
	// 结算本身幂等，重复触发无害。
	sched.RunClosingNow()
	sched.Start()

	// 等待中断信号以实现优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sched.Stop()
	logger.S().Info("经济系统已成功停止。")
}

// runGenesisMode 初始化赛季：创建赛季状态并给系统钱包注入预算
func runGenesisMode(eco *economy) {
	logger.S().Info("--- 赛季初始化 ---")
	state, err := eco.treasury.Genesis()
	if err != nil {
		logger.S().Fatalf("赛季初始化失败: %v", err)
	}
	spot, err := eco.exchange.SpotPrice()
	if err != nil {
		logger.S().Fatalf("读取现价失败: %v", err)
	}
	eco.reporter.SeasonReport(state, spot)
}

// runCloseMode 手动触发一次每日结算
func runCloseMode(eco *economy) {
	logger.S().Info("--- 手动触发每日结算 ---")
	result, err := eco.treasury.RunDailyClosing()
	if err != nil {
		logger.S().Fatalf("每日结算失败: %v", err)
	}
	eco.reporter.ClosingReport(result)
}

// runQuoteMode 打印一次只读询价，不改变任何状态
func runQuoteMode(eco *economy, side string, amount int64) {
	var s models.Side
	switch side {
	case "buy":
		s = models.Buy
	case "sell":
		s = models.Sell
	default:
		logger.S().Fatalf("未知的交易方向: %s。请选择 'buy' 或 'sell'。", side)
	}

	quote, err := eco.exchange.Quote(s, amount)
	if err != nil {
		logger.S().Fatalf("询价失败: %v", err)
	}
	eco.reporter.QuoteReport(quote)
}

// runReportMode 打印赛季快照；指定 -account 时追加该账户的钱包与债券，
// 指定 -chart 时追加K线
func runReportMode(eco *economy, account string, chart int) {
	state, err := eco.treasury.CurrentState()
	if err != nil {
		logger.S().Fatalf("读取赛季状态失败: %v", err)
	}
	spot, err := eco.exchange.SpotPrice()
	if err != nil {
		logger.S().Fatalf("读取现价失败: %v", err)
	}
	eco.reporter.SeasonReport(state, spot)

	if chart > 0 {
		candles, err := eco.exchange.GetChartData(chart)
		if err != nil {
			logger.S().Fatalf("读取K线失败: %v", err)
		}
		eco.reporter.CandleReport(chart, candles, 30)
	}

	if account == "" {
		return
	}
	wallet, err := eco.ledger.Wallet(account)
	if err != nil {
		logger.S().Fatalf("读取钱包失败: %v", err)
	}
	eco.reporter.WalletReport(wallet)

	bonds, err := eco.bank.ListBonds(account)
	if err != nil {
		logger.S().Fatalf("读取债券失败: %v", err)
	}
	if len(bonds) > 0 {
		eco.reporter.BondsReport(account, bonds)
	}
}
