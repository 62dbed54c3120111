package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/perkbot/internal/config"
	"github.com/hitoshi/perkbot/internal/database"
	"github.com/hitoshi/perkbot/internal/handler"
	"github.com/hitoshi/perkbot/internal/logger"
	"github.com/hitoshi/perkbot/internal/metrics"
	"github.com/hitoshi/perkbot/internal/middleware"
	"github.com/hitoshi/perkbot/internal/perk"
	"github.com/hitoshi/perkbot/internal/repository"
	"github.com/hitoshi/perkbot/internal/security"
	"github.com/hitoshi/perkbot/internal/worker/cleanup"
	"github.com/hitoshi/perkbot/internal/worker/ingest"
)

// sweepInterval はセッション期限切れ処理の実行間隔。
const sweepInterval = time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandIngest:
		sourceURL, filePath := IngestTarget(args)
		return runIngest(cfg, sourceURL, filePath)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// storage はストレージドライバに応じて構築したリポジトリ群。
type storage struct {
	catalog     repository.CatalogRepository
	assignments repository.AssignmentRepository
	health      handler.HealthChecker     // memoryドライバではnil
	janitor     *cleanup.OrphanCleanupJob // memoryドライバではnil
	close       func() error
}

// openStorage は設定されたドライバでリポジトリを構築する。
// postgresドライバではDB接続を確立し、未適用のマイグレーションを適用する。
func openStorage(cfg *config.Config) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := repository.NewMemoryStore()
		slog.Warn("using in-memory storage; assignments are lost on restart")
		return &storage{
			catalog:     store,
			assignments: store,
			close:       func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("database schema is up to date", slog.Uint64("version", uint64(version)))

	return &storage{
		catalog:     repository.NewPostgresCatalogRepo(db),
		assignments: repository.NewPostgresAssignmentRepo(db),
		health:      db,
		janitor:     cleanup.NewOrphanCleanupJob(db, slog.Default()),
		close:       db.Close,
	}, nil
}

// newPipeline はカタログ取り込みパイプラインを構築する。
func newPipeline(cfg *config.Config, catalog repository.CatalogRepository, collector *metrics.Collector) *ingest.Pipeline {
	return ingest.NewPipeline(
		catalog,
		security.NewSourceGuard(),
		ingest.NewNormalizer(),
		collector,
		slog.Default(),
		ingest.Options{
			SourceURL:    cfg.PerksSourceURL,
			SourceFile:   cfg.PerksSourceFile,
			FetchTimeout: cfg.FetchTimeout,
			MaxSize:      cfg.FetchMaxSize,
		},
	)
}

// runServe はインタラクションAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、定期取り込みとセッション掃除を起動してからHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストレージ
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービスの初期化
	pipeline := newPipeline(cfg, store.catalog, collector)
	perkService := perk.NewService(store.catalog, store.assignments, collector, slog.Default(), perk.Options{
		MaxPerks:         cfg.MaxPerks,
		PageSize:         cfg.PageSize,
		SelectionTimeout: cfg.SelectionTimeout,
		SearchTimeout:    cfg.SearchTimeout,
		PromptGrace:      cfg.PromptGrace,
	})

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:           slog.Default(),
		AllowedChannels:  cfg.AllowedChannels,
		AdminToken:       cfg.AdminToken,
		RateLimiter:      rateLimiter,
		PerkService:      perkService,
		CatalogRefresher: pipeline,
		HealthChecker:    store.health,
		MetricsHandler:   metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 6. バックグラウンドジョブ
	scheduler := ingest.NewScheduler(pipeline, slog.Default(), cfg.IngestInterval, cfg.IngestOnStart)
	go scheduler.Start(ctx)
	go perkService.RunSweeper(ctx, sweepInterval)
	if store.janitor != nil {
		go store.janitor.Start(ctx)
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Duration("ingest_interval", cfg.IngestInterval),
			slog.Int("max_perks", cfg.MaxPerks),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runIngest はカタログ取り込みを1回だけ実行する。
// sourceURLまたはfilePathが指定された場合は設定より優先する。
func runIngest(cfg *config.Config, sourceURL, filePath string) error {
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.close()

	collector := metrics.NewCollector(prometheus.NewRegistry())
	pipeline := newPipeline(cfg, store.catalog, collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var result *ingest.Result
	switch {
	case sourceURL != "":
		result, err = pipeline.UpdatePerksFromURL(ctx, sourceURL)
	case filePath != "":
		result, err = pipeline.UpdatePerksFromFile(ctx, filePath)
	default:
		result, err = pipeline.UpdatePerks(ctx)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	slog.Info("catalog ingest completed",
		slog.String("source", result.Source),
		slog.Int("perks", result.Perks),
		slog.Int("dropped", result.Dropped),
		slog.Duration("duration", result.Duration),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageDriver == config.StorageDriverMemory {
		slog.Info("memory storage driver has no schema; nothing to migrate")
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

// compile-time interface check
var _ handler.HealthChecker = (*sql.DB)(nil)
