package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"glue-economy-go/internal/config"
	"glue-economy-go/internal/logger"
	"glue-economy-go/internal/reporter"
	"glue-economy-go/internal/treasury"
)

// Scheduler 管理所有周期任务：每日结算与配置热加载。
type Scheduler struct {
	Cron     *cron.Cron
	Treasury *treasury.Treasury
	Provider *config.Provider
	Reporter *reporter.Reporter
}

// NewScheduler creates a new Scheduler. Cron specs use the standard
// 5-field format (minute granularity is enough for daily closing).
func NewScheduler(t *treasury.Treasury, p *config.Provider, r *reporter.Reporter) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(),
		Treasury: t,
		Provider: p,
		Reporter: r,
	}
}

// RegisterAll registers the daily closing task and, when reloadSpec is
// non-empty, the config hot-reload task.
func (s *Scheduler) RegisterAll(closingSpec, reloadSpec string) error {
	if _, err := s.Cron.AddFunc(closingSpec, s.closingTask); err != nil {
		return fmt.Errorf("register closing task: %w", err)
	}
	if reloadSpec != "" {
		if _, err := s.Cron.AddFunc(reloadSpec, s.reloadTask); err != nil {
			return fmt.Errorf("register reload task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	logger.S().Info("scheduler started")
}

// Stop stops the cron scheduler and waits for any running job.
func (s *Scheduler) Stop() {
	ctx := s.Cron.Stop()
	<-ctx.Done()
	logger.S().Info("scheduler stopped")
}

// RunClosingNow executes the daily closing immediately (manual trigger
// and catch-up on startup). The closing itself is idempotent, so extra
// invocations are harmless.
func (s *Scheduler) RunClosingNow() {
	s.closingTask()
}

func (s *Scheduler) closingTask() {
	result, err := s.Treasury.RunDailyClosing()
	if err != nil {
		logger.S().Errorf("daily closing failed: %v", err)
		return
	}
	if !result.Settled {
		logger.S().Debugf("daily closing: day %d already settled", result.Day)
		return
	}
	s.Reporter.ClosingReport(result)
}

func (s *Scheduler) reloadTask() {
	if err := s.Provider.Reload(); err != nil {
		logger.S().Errorf("config reload failed, keeping previous config: %v", err)
	}
}
