// Package cleanup は参照先を失ったパーク紐付けの削除ジョブを提供する。
// カタログ更新で消えたパークのIDは再利用されないため、そのuser_perks行は
// 読み取り時に常に除外される。日次バッチでまとめて削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// OrphanCleanupJob はカタログに存在しないパークを参照する紐付けの削除ジョブ。
// 削除対象は読み取り結果に現れない行だけなので、実行の有無で観測結果は変わらない。
type OrphanCleanupJob struct {
	db       Executor
	logger   *slog.Logger
	Interval time.Duration // 実行間隔（デフォルト: 24時間）
}

// NewOrphanCleanupJob は新しいOrphanCleanupJobを生成する。
func NewOrphanCleanupJob(db Executor, logger *slog.Logger) *OrphanCleanupJob {
	return &OrphanCleanupJob{
		db:       db,
		logger:   logger,
		Interval: 24 * time.Hour,
	}
}

// Run は参照先のないuser_perks行を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *OrphanCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	query := `DELETE FROM user_perks up
	          WHERE NOT EXISTS (SELECT 1 FROM perks p WHERE p.id = up.perk_id)`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("紐付けクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("紐付けクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("紐付けクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以降はコンテキストがキャンセルされるまでInterval毎に実行する。
// 失敗はログに記録し、次の周期で再実行する。
func (j *OrphanCleanupJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	j.runOnce(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx, interval)
		}
	}
}

// runOnce はRunを1回実行し、失敗時は次回の実行予定をログに残す。
func (j *OrphanCleanupJob) runOnce(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Warn("紐付けクリーンアップは次の周期で再実行します",
			slog.Duration("retry_in", interval),
		)
	}
}
