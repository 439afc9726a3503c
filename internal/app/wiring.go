package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/blitznow/ridertraining/internal/config"
	"github.com/blitznow/ridertraining/internal/database"
	"github.com/blitznow/ridertraining/internal/handler"
	"github.com/blitznow/ridertraining/internal/metrics"
	"github.com/blitznow/ridertraining/internal/middleware"
	"github.com/blitznow/ridertraining/internal/repository"
	"github.com/blitznow/ridertraining/internal/rider"
	"github.com/blitznow/ridertraining/internal/security"
	"github.com/blitznow/ridertraining/internal/supabase"
	"github.com/blitznow/ridertraining/internal/training"
)

// healthTimeout は/healthで依存先に問い合わせる際のタイムアウト。
const healthTimeout = 3 * time.Second

// application は起動モードに依らない依存関係一式。
type application struct {
	router      http.Handler
	registry    *prometheus.Registry
	riderDB     *sql.DB
	storeDB     *sql.DB
	storeClient *supabase.Client
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

// newApplication は設定から全依存関係をワイヤリングする。
// ライダーDBに接続できなくても、DegradedModeが有効なら起動を続ける。
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	a := &application{logger: logger}

	// 1. メトリクス
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewCollector(a.registry)

	// 2. ライダーDB（リードレプリカ）
	riderDB, err := database.Open(cfg.RiderDatabaseURL(), database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	a.riderDB = riderDB
	if err := pingWithTimeout(riderDB, cfg.DBConnectTimeout); err != nil {
		if !cfg.DegradedMode {
			a.Close()
			return nil, fmt.Errorf("failed to connect to rider database: %w", err)
		}
		logger.Warn("ライダーDBに接続できません。縮退モードで起動します",
			slog.Bool("degraded", true),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("rider database connection established")
	}
	riderRepo := repository.NewPostgresRiderRepo(riderDB, cfg.DBSchema, cfg.DBQueryTimeout)

	// 3. 進捗・チュートリアルストア
	var (
		progressStore repository.ProgressStore
		tutorialStore repository.TutorialStore
	)
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		storeDB, err := database.Open(cfg.StoreDatabaseURL, database.DefaultPoolConfig())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.storeDB = storeDB
		progressStore = repository.NewPostgresProgressStore(storeDB)
		tutorialStore = repository.NewPostgresTutorialStore(storeDB)
	default:
		a.storeClient = supabase.NewClient(
			cfg.SupabaseURL,
			cfg.SupabaseKey,
			security.NewStoreClient(cfg.StoreTimeout),
			supabase.Options{
				MaxRetries:     cfg.StoreMaxRetries,
				RetryBaseDelay: cfg.StoreRetryBaseDelay,
				Metrics:        m,
				Logger:         logger,
			},
		)
		progressStore = supabase.NewProgressStore(a.storeClient)
		tutorialStore = supabase.NewTutorialStore(a.storeClient)
	}

	// 4. ドメインサービス
	resolver := rider.NewResolver(riderRepo, cfg.DegradedMode, m, logger)
	progressService := training.NewProgressService(progressStore, cfg.DegradedMode, m, logger)
	tutorialService := training.NewTutorialService(
		tutorialStore, progressService, resolver, security.NewTextSanitizer(), logger,
	)

	// 5. ルーター
	if cfg.RateLimitPerMinute > 0 {
		a.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitPerMinute))
	}
	a.router = handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       a.rateLimiter,
		Metrics:           m,
		Logger:            logger,
		RiderService:      resolver,
		ProgressService:   progressService,
		TutorialService:   tutorialService,
	})

	return a, nil
}

// opsHandler は/metricsと/healthを提供するハンドラーを返す。
func (a *application) opsHandler() http.Handler {
	return metrics.SetupMetricsRoute(a.registry, a.checkHealth)
}

// checkHealth はライダーDBと進捗ストアへの疎通を確認する。
func (a *application) checkHealth(r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := a.riderDB.PingContext(ctx); err != nil {
		a.logger.WarnContext(ctx, "health: rider database unreachable", slog.String("error", err.Error()))
		return fmt.Errorf("rider database: %w", err)
	}
	if a.storeDB != nil {
		if err := a.storeDB.PingContext(ctx); err != nil {
			a.logger.WarnContext(ctx, "health: store database unreachable", slog.String("error", err.Error()))
			return fmt.Errorf("store database: %w", err)
		}
	}
	if a.storeClient != nil {
		if err := a.storeClient.Ping(ctx); err != nil {
			a.logger.WarnContext(ctx, "health: table store unreachable", slog.String("error", err.Error()))
			return fmt.Errorf("table store: %w", err)
		}
	}
	return nil
}

// Close は保持しているリソースを解放する。
func (a *application) Close() {
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	if a.riderDB != nil {
		a.riderDB.Close()
	}
	if a.storeDB != nil {
		a.storeDB.Close()
	}
}

func pingWithTimeout(db *sql.DB, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return db.PingContext(ctx)
}
