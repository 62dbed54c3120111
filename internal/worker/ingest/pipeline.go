// Package ingest はパークカタログの取り込み処理を提供する。
// 取得元からスプレッドシートを取得し、検証・正規化した上でカタログを一括で置き換える。
// どの段階で失敗しても既存のカタログは変更しない。
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/perkbot/internal/model"
	"github.com/hitoshi/perkbot/internal/repository"
)

// 取り込み失敗の分類
var (
	ErrSourceUnavailable = errors.New("perk source unavailable")
	ErrSchemaInvalid     = errors.New("perk source schema invalid")
	ErrEmptySource       = errors.New("perk source has no complete rows")
	ErrNoSource          = errors.New("no perk source configured")
)

// 取り込み結果のメトリクスラベル
const (
	ResultSuccess           = "success"
	ResultSourceUnavailable = "source_unavailable"
	ResultSchemaInvalid     = "schema_invalid"
	ResultEmptySource       = "empty_source"
	ResultStorageFault      = "storage_fault"
)

// MetricsRecorder は取り込みメトリクスの記録先。
type MetricsRecorder interface {
	StatusRecorder
	RecordIngest(result string, duration time.Duration)
	RecordCatalogSize(perks int)
}

// Options は取り込みパイプラインの設定。
type Options struct {
	SourceURL    string // 空の場合はSourceFileを使う
	SourceFile   string
	FetchTimeout time.Duration
	MaxSize      int64
}

// Result は取り込み1回分の結果。
type Result struct {
	Source   string        `json:"source"`
	Perks    int           `json:"perks"`
	Dropped  int           `json:"dropped"`
	Duration time.Duration `json:"-"`
}

// Pipeline はカタログ取り込みを実行する。
// 同時に複数の取り込みが走らないようにプロセス内で直列化する。
type Pipeline struct {
	catalog    repository.CatalogRepository
	guard      SSRFValidator
	normalizer *Normalizer
	metrics    MetricsRecorder
	logger     *slog.Logger
	opts       Options

	mu sync.Mutex
}

// NewPipeline はPipelineの新しいインスタンスを生成する。
func NewPipeline(
	catalog repository.CatalogRepository,
	guard SSRFValidator,
	normalizer *Normalizer,
	metrics MetricsRecorder,
	logger *slog.Logger,
	opts Options,
) *Pipeline {
	return &Pipeline{
		catalog:    catalog,
		guard:      guard,
		normalizer: normalizer,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
	}
}

// UpdatePerks は設定された取得元からカタログを更新する。
// スケジューラから日次で呼び出される。
func (p *Pipeline) UpdatePerks(ctx context.Context) (*Result, error) {
	switch {
	case p.opts.SourceURL != "":
		return p.UpdatePerksFromURL(ctx, p.opts.SourceURL)
	case p.opts.SourceFile != "":
		return p.UpdatePerksFromFile(ctx, p.opts.SourceFile)
	default:
		return nil, ErrNoSource
	}
}

// UpdatePerksFromURL は指定URLからカタログを更新する。
func (p *Pipeline) UpdatePerksFromURL(ctx context.Context, url string) (*Result, error) {
	return p.Run(ctx, NewHTTPSource(url, p.guard, p.opts.FetchTimeout, p.opts.MaxSize, p.metrics))
}

// UpdatePerksFromFile は指定ファイルからカタログを更新する。
func (p *Pipeline) UpdatePerksFromFile(ctx context.Context, path string) (*Result, error) {
	return p.Run(ctx, NewFileSource(path, p.opts.MaxSize))
}

// Run は取得・解析・正規化・保存を順に実行する。
// 失敗はログに記録した上でエラーとして返し、カタログには触れない。
func (p *Pipeline) Run(ctx context.Context, src Source) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	result, err := p.run(ctx, src)
	duration := time.Since(start)

	label := resultLabel(err)
	p.metrics.RecordIngest(label, duration)

	if err != nil {
		p.logger.Error("カタログの取り込みに失敗しました",
			slog.String("source", src.Describe()),
			slog.String("result", label),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	result.Duration = duration
	p.metrics.RecordCatalogSize(result.Perks)
	p.logger.Info("カタログを更新しました",
		slog.String("source", result.Source),
		slog.Int("perks_count", result.Perks),
		slog.Int("dropped_rows", result.Dropped),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, src Source) (*Result, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := ParseWorkbook(data)
	if err != nil {
		return nil, err
	}

	perks, dropped := p.clean(rows)
	if len(perks) == 0 {
		return nil, fmt.Errorf("%w: %d rows dropped", ErrEmptySource, dropped)
	}
	perks = model.DedupePerkInputs(perks)

	if err := p.catalog.ReplaceCatalog(ctx, perks); err != nil {
		return nil, fmt.Errorf("カタログの保存に失敗しました: %w", err)
	}

	return &Result{
		Source:  src.Describe(),
		Perks:   len(perks),
		Dropped: dropped,
	}, nil
}

// clean は各セルを正規化し、必須列のいずれかが空になった行を取り除く。
func (p *Pipeline) clean(rows []Row) ([]model.PerkInput, int) {
	perks := make([]model.PerkInput, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		var cells [4]string
		complete := true
		for i, raw := range row.Cells {
			cells[i] = p.normalizer.Normalize(raw)
			if cells[i] == "" {
				complete = false
			}
		}
		if !complete {
			dropped++
			p.logger.Debug("必須列が欠けている行を除外しました", slog.Int("line", row.Line))
			continue
		}
		perks = append(perks, model.PerkInput{
			Name:                  cells[0],
			Type:                  cells[1],
			Specialization:        cells[2],
			SpecializationEffects: cells[3],
		})
	}
	return perks, dropped
}

// resultLabel はエラーをメトリクス用の結果ラベルに分類する。
func resultLabel(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrNoSource):
		return ResultSourceUnavailable
	case errors.Is(err, ErrSchemaInvalid):
		return ResultSchemaInvalid
	case errors.Is(err, ErrEmptySource):
		return ResultEmptySource
	default:
		return ResultStorageFault
	}
}
