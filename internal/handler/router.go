package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blitznow/ridertraining/internal/metrics"
	"github.com/blitznow/ridertraining/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	// RateLimiter がnilの場合はレート制限を行わない。
	RateLimiter *middleware.RateLimiter
	Metrics     metrics.MetricsCollector
	Logger      *slog.Logger

	RiderService    RiderServiceInterface
	ProgressService ProgressServiceInterface
	TutorialService TutorialServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → CORS → SecurityHeaders → RateLimit
//
// OPTIONSはパスに関わらずCORSミドルウェアが200で応答する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}

	origin := deps.CORSAllowedOrigin
	if origin == "" {
		origin = "*"
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, m))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(origin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}

	riderHandler := NewRiderHandler(deps.RiderService, logger)
	progressHandler := NewProgressHandler(deps.ProgressService, logger)
	tutorialHandler := NewTutorialHandler(deps.TutorialService, deps.ProgressService, logger)

	// ライダー
	r.Get("/rider-info", riderHandler.GetRiderInfo)

	// 進捗
	r.Get("/training-progress", progressHandler.GetTrainingProgress)
	r.Post("/update-progress", progressHandler.UpdateProgress)
	r.Post("/module-started", progressHandler.ModuleStarted)
	r.Post("/module-completed", progressHandler.ModuleCompleted)

	// チュートリアル
	r.Get("/get-tutorials", tutorialHandler.GetTutorials)
	r.Post("/tutorial-state", tutorialHandler.TutorialState)
	r.Post("/tutorials", tutorialHandler.Tutorials)
	r.Post("/day-hub-mappings", tutorialHandler.DayHubMappings)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
