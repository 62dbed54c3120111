package ingest

import (
	"context"
	"log/slog"
	"time"
)

// Updater はカタログ更新の実行インターフェース。
type Updater interface {
	UpdatePerks(ctx context.Context) (*Result, error)
}

// Scheduler は一定間隔でカタログ更新を起動する。
// 失敗はUpdater側でログに記録されるため、ここでは次の周期まで待つだけにする。
type Scheduler struct {
	updater    Updater
	logger     *slog.Logger
	interval   time.Duration
	runOnStart bool
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// intervalが0以下の場合は24時間を使う。
func NewScheduler(updater Updater, logger *slog.Logger, interval time.Duration, runOnStart bool) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		updater:    updater,
		logger:     logger,
		interval:   interval,
		runOnStart: runOnStart,
	}
}

// Start はコンテキストがキャンセルされるまでスケジューラを実行する。
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("取り込みスケジューラを開始しました",
		slog.Duration("interval", s.interval),
		slog.Bool("run_on_start", s.runOnStart),
	)

	if s.runOnStart {
		s.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.updater.UpdatePerks(ctx); err != nil {
		s.logger.Warn("定期取り込みをスキップしました。次の周期で再試行します",
			slog.Duration("next_in", s.interval),
		)
	}
}
